package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/capdir/discovery"
	apperrors "github.com/kbukum/capdir/errors"
	"github.com/kbukum/capdir/validation"
)

// listParam collects repeated and comma separated values of key. Empty
// items are kept so that the directory can reject empty gbids.
func listParam(c *gin.Context, key string) []string {
	raw, ok := c.GetQueryArray(key)
	if !ok {
		return nil
	}
	var out []string
	for _, v := range raw {
		out = append(out, strings.Split(v, ",")...)
	}
	return out
}

func boolParam(c *gin.Context, key string) (bool, error) {
	v := c.Query(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, apperrors.InvalidInput(key, "must be a boolean")
	}
	return b, nil
}

func millisParam(c *gin.Context, key string) (time.Duration, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, apperrors.InvalidInput(key, "must be a number of milliseconds")
	}
	if err := validation.New().Min(key, ms, 0).Err(); err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// discoveryQos reads scope, cacheMaxAgeMs, discoveryTimeoutMs and onChange.
func discoveryQos(c *gin.Context) (discovery.DiscoveryQos, error) {
	var (
		qos discovery.DiscoveryQos
		err error
	)
	scope := strings.ToUpper(c.Query("scope"))
	if err := validation.New().OneOf("scope", scope, discovery.DiscoveryScopeNames()).Err(); err != nil {
		return qos, err
	}
	if qos.Scope, err = discovery.ParseDiscoveryScope(scope); err != nil {
		return qos, apperrors.InvalidInput("scope", err.Error())
	}
	if qos.CacheMaxAge, err = millisParam(c, "cacheMaxAgeMs"); err != nil {
		return qos, err
	}
	if qos.DiscoveryTimeout, err = millisParam(c, "discoveryTimeoutMs"); err != nil {
		return qos, err
	}
	if qos.ProviderMustSupportOnChange, err = boolParam(c, "onChange"); err != nil {
		return qos, err
	}
	return qos, nil
}
