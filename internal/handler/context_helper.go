package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/sma-risk-monitor/pkg/errors"
)

// intQuery parses an optional positive integer query parameter.
func intQuery(c *gin.Context, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, key+" must be a non-negative integer")
	}
	return v, nil
}

func bindError(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
}
