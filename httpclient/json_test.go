package httpclient

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doctor struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestJSONHelpers(t *testing.T) {
	tr := newScripted(okStep(`{"id":3,"name":"Dr. Rao"}`))
	c := newTestBuilder(tr, &recordingSleeper{}).Build()

	got, err := PostJSON[doctor](context.Background(), c, "/doctors", doctor{Name: "Dr. Rao"})

	require.NoError(t, err)
	assert.Equal(t, doctor{ID: 3, Name: "Dr. Rao"}, got)
	assert.JSONEq(t, `{"id":0,"name":"Dr. Rao"}`, string(tr.Requests()[0].Body))
}

func TestJSONHelpersPropagateErrors(t *testing.T) {
	tr := newScripted(statusStep(http.StatusNotFound, ""))
	c := newTestBuilder(tr, &recordingSleeper{}).Build()

	got, err := GetJSON[doctor](context.Background(), c, "/doctors/9")

	require.Error(t, err)
	assert.Zero(t, got)
}

func TestDecodeJSON(t *testing.T) {
	empty, err := DecodeJSON[doctor](&Response{StatusCode: http.StatusNoContent})
	require.NoError(t, err)
	assert.Zero(t, empty)

	_, err = DecodeJSON[doctor](&Response{Body: []byte("not json")})
	assert.Error(t, err)
}
