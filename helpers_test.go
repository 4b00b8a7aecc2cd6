package authsession

import (
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authsession/api"
	"github.com/MrEthical07/authsession/internal/fakeauth"
)

const (
	testEmail    = "ada@example.com"
	testPassword = "Secret1"
)

func newTestService(t *testing.T) (*fakeauth.Service, *api.Client) {
	t.Helper()

	svc := fakeauth.New()
	svc.AddAccount(fakeauth.Account{
		ID:       "u1",
		Name:     "Ada",
		Email:    testEmail,
		Password: testPassword,
		Verified: true,
	})
	srv := svc.Start()
	t.Cleanup(srv.Close)

	return svc, api.NewClient(srv.URL + "/api")
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Credential.Backend = CredentialMemory
	cfg.Session.MinInitDuration = 0
	cfg.Verification.TickInterval = 10 * time.Millisecond
	return cfg
}

type recordingNav struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNav) GoTo(path string) {
	n.mu.Lock()
	n.paths = append(n.paths, path)
	n.mu.Unlock()
}

func (n *recordingNav) Paths() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

type snapshotRecorder struct {
	mu    sync.Mutex
	snaps []AttemptSnapshot
}

func (r *snapshotRecorder) observe(s AttemptSnapshot) {
	r.mu.Lock()
	r.snaps = append(r.snaps, s)
	r.mu.Unlock()
}

func (r *snapshotRecorder) All() []AttemptSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AttemptSnapshot(nil), r.snaps...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
