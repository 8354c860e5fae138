package token

import (
	"errors"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/livekit/protocol/auth"
	"github.com/matryer/is"
)

const (
	testKey    = "devkey"
	testSecret = "devsecret-devsecret-devsecret-32b"
)

// verify checks the signature with the platform verifier and returns the
// grants and the expiry.
func verify(t *testing.T, raw string) (*auth.ClaimGrants, time.Time) {
	t.Helper()
	verifier, err := auth.ParseAPIToken(raw)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if verifier.APIKey() != testKey {
		t.Fatalf("api key = %q, want %q", verifier.APIKey(), testKey)
	}
	grants, err := verifier.Verify(testSecret)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}

	tok, err := jwt.ParseSigned(raw)
	if err != nil {
		t.Fatalf("parse jwt: %v", err)
	}
	var std jwt.Claims
	if err := tok.Claims([]byte(testSecret), &std); err != nil {
		t.Fatalf("jwt claims: %v", err)
	}
	return grants, std.Expiry.Time()
}

func TestIssue(t *testing.T) {
	is := is.New(t)
	issuer := NewIssuer(testKey, testSecret, "wss://example.livekit.cloud")

	before := time.Now()
	grant, err := issuer.Issue("u1", "r1")
	is.NoErr(err)
	is.Equal(grant.URL, "wss://example.livekit.cloud")
	is.Equal(grant.RoomName, "r1")

	c, exp := verify(t, grant.Token)
	is.Equal(c.Identity, "u1")
	is.Equal(c.Name, "u1")
	is.True(c.Video != nil)
	is.True(c.Video.RoomJoin)
	is.Equal(c.Video.Room, "r1")
	is.True(c.Video.GetCanPublish())
	is.True(c.Video.GetCanSubscribe())
	is.True(c.Video.GetCanPublishData())
	is.True(!c.Video.Agent)

	want := before.Add(2 * time.Hour)
	is.True(exp.After(want.Add(-5*time.Second)) && exp.Before(want.Add(5*time.Second))) // expiry about two hours out
}

func TestIssue_WrongSecretFailsVerification(t *testing.T) {
	is := is.New(t)
	issuer := NewIssuer(testKey, testSecret, "wss://example.livekit.cloud")

	grant, err := issuer.Issue("u1", "r1")
	is.NoErr(err)

	verifier, err := auth.ParseAPIToken(grant.Token)
	is.NoErr(err)
	_, err = verifier.Verify("some-other-secret-some-other-secret")
	is.True(err != nil) // signature must not verify with another secret

	_, err = verifier.Verify(testSecret)
	is.NoErr(err)
}

func TestIssue_Errors(t *testing.T) {
	tests := []struct {
		name    string
		issuer  *Issuer
		user    string
		room    string
		wantErr error
	}{
		{"missing key", NewIssuer("", "secret", "ws://x"), "u1", "r1", ErrMissingCredentials},
		{"missing secret", NewIssuer("key", "", "ws://x"), "u1", "r1", ErrMissingCredentials},
		{"missing user", NewIssuer("key", "secret", "ws://x"), "", "r1", nil},
		{"missing room", NewIssuer("key", "secret", "ws://x"), "u1", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.issuer.Issue(tt.user, tt.room)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestIssueAgent(t *testing.T) {
	is := is.New(t)
	issuer := NewIssuer(testKey, testSecret, "ws://localhost:7880")

	grant, err := issuer.IssueAgent("voice-assistant", "room-abc")
	is.NoErr(err)

	c, _ := verify(t, grant.Token)
	is.Equal(c.Identity, "voice-assistant")
	is.Equal(c.Video.Room, "room-abc")
	is.True(c.Video.RoomJoin)
	is.True(c.Video.Agent)
}

func TestIssueWorker(t *testing.T) {
	is := is.New(t)
	issuer := NewIssuer(testKey, testSecret, "ws://localhost:7880")

	raw, err := issuer.IssueWorker()
	is.NoErr(err)

	c, _ := verify(t, raw)
	is.True(c.Video.Agent)
	is.True(!c.Video.RoomJoin)
}

func TestCustomTTL(t *testing.T) {
	is := is.New(t)
	issuer := NewIssuer(testKey, testSecret, "ws://localhost:7880")
	issuer.TTL = 10 * time.Minute

	before := time.Now()
	grant, err := issuer.Issue("u1", "r1")
	is.NoErr(err)

	_, exp := verify(t, grant.Token)
	is.True(exp.Before(before.Add(11 * time.Minute)))
}
