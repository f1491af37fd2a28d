// Package logger provides structured logging backed by zerolog.
//
// Loggers are created from Config, scoped per component with WithComponent,
// and enriched with directory field keys (participant_id, gbid, ...):
//
//	log := logger.New(&cfg, "capdir").WithComponent("sequencer")
//	log.Info("task finished", logger.Fields(logger.FieldParticipantID, id, logger.FieldGbids, gbids))
package logger
