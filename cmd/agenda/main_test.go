package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dg-agenda/internal/config"
	"dg-agenda/internal/remote"
	"dg-agenda/internal/remote/grpcremote"
	"dg-agenda/internal/rolegate"
	"dg-agenda/internal/rpc/rpctest"
)

var users = []string{
	"secretaire:Secret@123:Secretary:Secrétaire DG",
	"directeur:Direct@123:Director:Directeur Général",
}

type harness struct {
	t       *testing.T
	srv     *rpctest.Server
	reports string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AGENDA_DRIVER", "grpc")
	t.Setenv("AGENDA_SESSION_FILE", filepath.Join(dir, "session.json"))
	t.Setenv("AGENDA_REPORT_DIR", filepath.Join(dir, "reports"))
	t.Setenv("AGENDA_IMPORT_INTERVAL", "0s")
	t.Setenv("AGENDA_TIMEZONE", "UTC")
	return &harness{t: t, srv: rpctest.Start(t, users...), reports: filepath.Join(dir, "reports")}
}

func (h *harness) run(stdin string, args ...string) (string, error) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	a := &app{
		in:     strings.NewReader(stdin),
		out:    &out,
		errOut: &errOut,
		openDriver: func(*config.Client, zerolog.Logger) (remote.Driver, error) {
			c, err := grpcremote.Dial(rpctest.Target, zerolog.Nop(), h.srv.DialOptions()...)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
	}
	defer a.close()
	cmd := NewRootCmd(a)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) must(args ...string) string {
	h.t.Helper()
	out, err := h.run("", args...)
	require.NoError(h.t, err, out)
	return out
}

var createdID = regexp.MustCompile(`created (\S+)`)

func (h *harness) add(who string) string {
	h.t.Helper()
	out := h.must("secretary", "add",
		"--date", "2025-11-07", "--time", "15:00", "--interlocutor", who,
		"--purpose", "Audience", "--location", "FDCUIC")
	m := createdID.FindStringSubmatch(out)
	require.Len(h.t, m, 2, out)
	return m[1]
}

func TestScreensRequireSession(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("", "secretary", "list")
	var gerr *GateError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, rolegate.RedirectToLogin, gerr.Decision.Outcome)

	assert.Contains(t, h.must("whoami"), "Not signed in")
}

func TestLoginWrongPassword(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("", "login", "-u", "secretaire", "-p", "nope")
	assert.Error(t, err)
	assert.Contains(t, h.must("whoami"), "Not signed in")
}

func TestPasswordPrompt(t *testing.T) {
	h := newHarness(t)
	out, err := h.run("Secret@123\n", "login", "-u", "secretaire")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as Secrétaire DG (Secretary)")
	assert.Contains(t, out, "agenda secretary list")
}

func TestSecretaryScreens(t *testing.T) {
	h := newHarness(t)
	h.must("login", "-u", "secretaire", "-p", "Secret@123")
	assert.Contains(t, h.must("whoami"), "secretaire (Secretary)")

	id := h.add("KOCCGA")
	h.add("DJ Taff")

	out := h.must("secretary", "list")
	assert.Contains(t, out, "KOCCGA")
	assert.Contains(t, out, "DJ Taff")
	assert.Contains(t, out, "page 1/1, 2 appointment(s)")

	out = h.must("secretary", "list", "-q", "taff")
	assert.NotContains(t, out, "KOCCGA")

	h.must("secretary", "edit", id, "--comments", "Date à confirmer")
	assert.Contains(t, h.must("secretary", "list"), "Date à confirmer")

	_, err := h.run("", "secretary", "edit", id, "--date", "07/11/2025")
	assert.Error(t, err)

	out = h.must("secretary", "export", "--format", "xlsx")
	assert.Contains(t, out, "exported 2 appointment(s)")
	entries, err := os.ReadDir(h.reports)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "Rendez-vous_DG_"))

	out = h.must("secretary", "export", "--format", "pdf", "--select", id)
	assert.Contains(t, out, "exported 1 appointment(s)")
	assert.Contains(t, out, "selection-Rendez-vous_DG_")

	out, err = h.run("n\n", "secretary", "delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, "cancelled")

	h.must("secretary", "delete", "-y", id)
	assert.NotContains(t, h.must("secretary", "list"), "KOCCGA")

	_, err = h.run("", "secretary", "delete", "-y", id)
	assert.Error(t, err)

	// a secretary is sent home from the director screens
	_, err = h.run("", "director", "stats")
	var gerr *GateError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, rolegate.HomeSecretary, gerr.Decision.Home)
}

func TestDirectorScreens(t *testing.T) {
	h := newHarness(t)
	h.must("login", "-u", "secretaire", "-p", "Secret@123")
	id := h.add("KOCCGA")
	h.add("DJ Taff")

	h.must("login", "-u", "directeur", "-p", "Direct@123")
	out := h.must("director", "status", id, "Confirmé")
	assert.Contains(t, out, "is now Confirmé")

	_, err := h.run("", "director", "status", id, "maybe")
	assert.Error(t, err)

	out = h.must("director", "stats")
	assert.Regexp(t, `Confirmé\s+1`, out)
	assert.Regexp(t, `À valider\s+1`, out)
	assert.Regexp(t, `Total\s+2`, out)

	out = h.must("director", "list", "--status", "confirmed")
	assert.Contains(t, out, "KOCCGA")
	assert.NotContains(t, out, "DJ Taff")

	_, err = h.run("", "secretary", "list")
	var gerr *GateError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, rolegate.HomeDirector, gerr.Decision.Home)
}

func TestImport(t *testing.T) {
	h := newHarness(t)
	h.must("login", "-u", "secretaire", "-p", "Secret@123")
	h.add("KOCCGA")

	file := filepath.Join(t.TempDir(), "rdv.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
- {date: "2025-11-07", time: "15:00", interlocutor: KOCCGA, purpose: Audience, location: FDCUIC}
- {date: "2025-11-13", time: "12:30", interlocutor: Centre Culturel Blaise Senghor, purpose: Invitation, location: FDCUIC}
- {date: "2025-11-14", time: "25:00", interlocutor: Agence Saphila, purpose: Audience, location: FDCUIC}
`), 0o600))

	out := h.must("secretary", "import", file)
	assert.Contains(t, out, "imported 1, duplicates 1, failed 1")
	assert.Contains(t, h.must("secretary", "list"), "Blaise Senghor")
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.must("login", "-u", "secretaire", "-p", "Secret@123")
	assert.Contains(t, h.must("logout"), "Signed out")
	assert.Contains(t, h.must("whoami"), "Not signed in")
	assert.Contains(t, h.must("logout"), "Not signed in")
}
