package wire

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadRequestDecodesHeaderAndBody(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("POST session/create\n{\"name\":\"quiz\"}\n"))
	req, err := ReadRequest(NewScanner(r))
	require.NoError(t, err)
	require.Equal(t, "POST", req.Method)
	require.Equal(t, "session/create", req.Endpoint)
	require.JSONEq(t, `{"name":"quiz"}`, string(req.Body))
}

func TestReadRequestDefaultsEmptyBody(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("GET sessions/list\n"))
	req, err := ReadRequest(NewScanner(r))
	require.NoError(t, err)
	require.Equal(t, "GET", req.Method)
	require.JSONEq(t, `{}`, string(req.Body))
}

func TestReadRequestGETDoesNotConsumeNextRequestAsBody(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("GET sessions/list\nPOST player/login\n{\"pseudo\":\"alice\"}\n"))
	scanner := NewScanner(r)

	first, err := ReadRequest(scanner)
	require.NoError(t, err)
	require.Equal(t, "GET", first.Method)
	require.JSONEq(t, `{}`, string(first.Body))

	second, err := ReadRequest(scanner)
	require.NoError(t, err)
	require.Equal(t, "POST", second.Method)
	require.Equal(t, "player/login", second.Endpoint)
	require.JSONEq(t, `{"pseudo":"alice"}`, string(second.Body))
}

func TestReadRequestUppercasesMethod(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("post player/register\n{}\n"))
	req, err := ReadRequest(NewScanner(r))
	require.NoError(t, err)
	require.Equal(t, "POST", req.Method)
}

func TestReadRequestRejectsMalformedHeader(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("justoneword\n{}\n"))
	_, err := ReadRequest(NewScanner(r))
	require.ErrorIs(t, err, ErrMalformedHeader)
}

func TestReadRequestReportsConnClosed(t *testing.T) {
	r := bufio.NewReader(strings.NewReader(""))
	_, err := ReadRequest(NewScanner(r))
	require.ErrorIs(t, err, ErrConnClosed)
}

func TestReadRequestRejectsOverlongLine(t *testing.T) {
	huge := strings.Repeat("a", MaxLineSize+1)
	r := bufio.NewReader(strings.NewReader("POST " + huge + "\n{}\n"))
	_, err := ReadRequest(NewScanner(r))
	require.ErrorIs(t, err, ErrLineTooLong)
}

func TestEncodeResponseRoundTrip(t *testing.T) {
	line, err := Encode(Response{Action: "player/register", Statut: "201", Message: "ok"})
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(string(line), "\n"))
	require.JSONEq(t, `{"action":"player/register","statut":"201","message":"ok"}`, strings.TrimSpace(string(line)))
}

func TestEncodeEventOmitsStatut(t *testing.T) {
	line, err := EncodeEvent(Event{Action: "session/started", Message: map[string]int{"countdown": 5}})
	require.NoError(t, err)
	require.NotContains(t, string(line), "statut")
	require.JSONEq(t, `{"action":"session/started","message":{"countdown":5}}`, strings.TrimSpace(string(line)))
}

func TestDecodeBody(t *testing.T) {
	var out struct {
		Pseudo string `json:"pseudo"`
	}
	require.NoError(t, Decode([]byte(`{"pseudo":"alice"}`), &out))
	require.Equal(t, "alice", out.Pseudo)

	require.Error(t, Decode([]byte(`not json`), &out))
}
