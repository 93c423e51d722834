package httpclient

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/shopcart/pkg/errors"
)

func makeResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    &http.Request{URL: &url.URL{Path: "/products/42"}},
	}
}

func TestParseResponseError_NotFound(t *testing.T) {
	err := ParseResponseError(makeResponse(http.StatusNotFound, `{}`), "inventory")

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T", err)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
	assert.Contains(t, appErr.Message, "/products/42")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestParseResponseError_StructuredBadRequest(t *testing.T) {
	body := `{"error":{"code":"INVALID_INPUT","message":"bad id"}}`
	err := ParseResponseError(makeResponse(http.StatusBadRequest, body), "inventory")

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "inventory: bad id")
}

func TestParseResponseError_Unavailable(t *testing.T) {
	err := ParseResponseError(makeResponse(http.StatusServiceUnavailable, "down"), "inventory")
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
}

func TestParseResponseError_ServerError(t *testing.T) {
	body := `{"error":{"code":"INTERNAL_ERROR","message":"db"}}`
	err := ParseResponseError(makeResponse(http.StatusInternalServerError, body), "inventory")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "inventory server error (500/INTERNAL_ERROR): db")
}

func TestParseResponseError_OtherStatus(t *testing.T) {
	err := ParseResponseError(makeResponse(http.StatusTeapot, "short and stout"), "inventory")

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusTeapot, appErr.Status)
	assert.Equal(t, "inventory: short and stout", appErr.Message)
}
