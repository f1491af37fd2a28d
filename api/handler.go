package api

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/capdir/discovery"
	apperrors "github.com/kbukum/capdir/errors"
	"github.com/kbukum/capdir/logger"
	"github.com/kbukum/capdir/server"
	"github.com/kbukum/capdir/validation"
)

// Directory is the part of directory.Directory served over HTTP.
type Directory interface {
	Add(ctx context.Context, entry discovery.DiscoveryEntry, await bool, gbids []string) error
	AddToAll(ctx context.Context, entry discovery.DiscoveryEntry, await bool) error
	Remove(ctx context.Context, participantID string) error
	RemoveStrict(ctx context.Context, participantID string) error
	RemoveFromGbids(ctx context.Context, participantID string, gbids []string) error
	Lookup(ctx context.Context, domains []string, interfaceName string, qos discovery.DiscoveryQos, gbids []string) ([]discovery.DiscoveryEntryWithMetaInfo, error)
	LookupParticipant(ctx context.Context, participantID string, qos discovery.DiscoveryQos, gbids []string) (discovery.DiscoveryEntryWithMetaInfo, error)
}

// Handler serves the directory routes.
type Handler struct {
	dir Directory
	log *logger.Logger
}

// NewHandler creates a Handler.
func NewHandler(dir Directory, log *logger.Logger) *Handler {
	return &Handler{dir: dir, log: log.WithComponent("api")}
}

// Register mounts the routes on r. guard runs before the routes that change
// registrations, typically middleware.Auth.
func (h *Handler) Register(r gin.IRouter, guard ...gin.HandlerFunc) {
	v1 := r.Group("/v1")

	providers := v1.Group("/providers", guard...)
	providers.POST("", h.add)
	providers.POST("/all", h.addToAll)
	providers.DELETE("/:participantId", h.remove)

	v1.GET("/lookup", h.lookup)
	v1.GET("/participants/:participantId", h.lookupParticipant)
}

func (h *Handler) bindEntry(c *gin.Context) (discovery.DiscoveryEntry, bool) {
	var entry discovery.DiscoveryEntry
	if err := c.ShouldBindJSON(&entry); err != nil {
		server.RespondWithError(c, apperrors.Validation("request body is not a valid discovery entry").WithCause(err))
		return entry, false
	}
	if err := validation.Validate(entry); err != nil {
		server.RespondWithError(c, err)
		return entry, false
	}
	return entry, true
}

func (h *Handler) add(c *gin.Context) {
	entry, ok := h.bindEntry(c)
	if !ok {
		return
	}
	await, err := boolParam(c, "await")
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	if err := h.dir.Add(c.Request.Context(), entry, await, listParam(c, "gbids")); err != nil {
		server.RespondWithError(c, err)
		return
	}
	h.respondAdded(c, entry, await)
}

func (h *Handler) addToAll(c *gin.Context) {
	entry, ok := h.bindEntry(c)
	if !ok {
		return
	}
	await, err := boolParam(c, "await")
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	if err := h.dir.AddToAll(c.Request.Context(), entry, await); err != nil {
		server.RespondWithError(c, err)
		return
	}
	h.respondAdded(c, entry, await)
}

// respondAdded answers 201 once the registration is confirmed and 202 while
// the global part is still queued.
func (h *Handler) respondAdded(c *gin.Context, entry discovery.DiscoveryEntry, await bool) {
	h.log.WithParticipant(entry.ParticipantID).Debug("provider added", logger.Fields(
		logger.FieldDomain, entry.Domain,
		logger.FieldInterface, entry.InterfaceName,
		logger.FieldAwait, await,
	))
	if await || !entry.IsGlobal() {
		server.RespondCreated(c, entry)
		return
	}
	server.RespondAccepted(c, entry)
}

func (h *Handler) remove(c *gin.Context) {
	pid := c.Param("participantId")
	if err := validation.New().Required("participantId", pid).Err(); err != nil {
		server.RespondWithError(c, err)
		return
	}
	strict, err := boolParam(c, "strict")
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	gbids := listParam(c, "gbids")

	ctx := c.Request.Context()
	switch {
	case len(gbids) > 0:
		err = h.dir.RemoveFromGbids(ctx, pid, gbids)
	case strict:
		err = h.dir.RemoveStrict(ctx, pid)
	default:
		err = h.dir.Remove(ctx, pid)
	}
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondNoContent(c)
}

func (h *Handler) lookup(c *gin.Context) {
	domains := listParam(c, "domain")
	interfaceName := strings.TrimSpace(c.Query("interface"))
	if err := validation.New().
		NotEmpty("domain", domains).
		Required("interface", interfaceName).
		Err(); err != nil {
		server.RespondWithError(c, err)
		return
	}
	qos, err := discoveryQos(c)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}

	result, err := h.dir.Lookup(c.Request.Context(), domains, interfaceName, qos, listParam(c, "gbids"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	if result == nil {
		result = []discovery.DiscoveryEntryWithMetaInfo{}
	}
	server.RespondOK(c, result)
}

func (h *Handler) lookupParticipant(c *gin.Context) {
	pid := c.Param("participantId")
	if err := validation.New().Required("participantId", pid).Err(); err != nil {
		server.RespondWithError(c, err)
		return
	}
	qos, err := discoveryQos(c)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	result, err := h.dir.LookupParticipant(c.Request.Context(), pid, qos, listParam(c, "gbids"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, result)
}
