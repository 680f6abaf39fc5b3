package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRemote_MapsAuthStatuses(t *testing.T) {
	assert.Equal(t, Unauthenticated, Remote("submit", http.StatusUnauthorized, "expired").Kind)
	assert.Equal(t, Forbidden, Remote("submit", http.StatusForbidden, "insufficient role").Kind)
	assert.Equal(t, RemoteFailure, Remote("submit", http.StatusConflict, "not in reviewing state").Kind)
}

func TestRemote_EmptyBodyUsesStatusText(t *testing.T) {
	e := Remote("submit", http.StatusBadGateway, "")
	assert.Equal(t, "Bad Gateway", e.Detail)
}

func TestKindOf_Wrapped(t *testing.T) {
	base := New(InvalidInput, "submit review", "note is required")
	err := fmt.Errorf("dialog: %w", base)

	assert.Equal(t, InvalidInput, KindOf(err))
	assert.True(t, Is(err, InvalidInput))
	assert.False(t, Is(err, Forbidden))
	assert.False(t, Is(nil, InvalidInput))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestError_Message(t *testing.T) {
	assert.Equal(t, "submit review: note is required", New(InvalidInput, "submit review", "note is required").Error())
	assert.Equal(t, "fetch reviews: boom", Wrap(NetworkFailure, "fetch reviews", errors.New("boom")).Error())
	assert.Equal(t, "forbidden", (&Error{Kind: Forbidden}).Error())
}

func TestDetail(t *testing.T) {
	assert.Equal(t, "concert already decided", Detail(Remote("op", http.StatusConflict, "concert already decided")))
	assert.Equal(t, "plain", Detail(errors.New("plain")))
	assert.Equal(t, "", Detail(nil))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{New(Unauthenticated, "", ""), http.StatusUnauthorized},
		{New(Forbidden, "", ""), http.StatusForbidden},
		{New(InvalidInput, "", ""), http.StatusBadRequest},
		{Wrap(NetworkFailure, "", errors.New("x")), http.StatusGatewayTimeout},
		{Remote("", http.StatusConflict, "x"), http.StatusConflict},
		{Remote("", http.StatusInternalServerError, "x"), http.StatusBadGateway},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), "%v", tt.err)
	}
}
