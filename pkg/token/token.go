// Package token mints LiveKit access tokens for room participants, the agent
// and the agent worker connection.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/livekit/protocol/auth"
)

// DefaultTTL is the validity window of participant tokens.
const DefaultTTL = 2 * time.Hour

var (
	// ErrMissingCredentials is returned when the API key or secret is empty.
	ErrMissingCredentials = errors.New("livekit api key and secret are required")

	// ErrSigning wraps failures to produce a signed token.
	ErrSigning = errors.New("token signing failed")
)

// Grant is what a participant needs to join a room.
type Grant struct {
	Token    string `json:"token"`
	URL      string `json:"url"`
	RoomName string `json:"room_name"`
}

// Issuer signs access tokens with a single API key pair.
type Issuer struct {
	APIKey    string
	APISecret string
	URL       string
	TTL       time.Duration
}

// NewIssuer creates an Issuer with the default TTL.
func NewIssuer(apiKey, apiSecret, url string) *Issuer {
	return &Issuer{
		APIKey:    apiKey,
		APISecret: apiSecret,
		URL:       url,
		TTL:       DefaultTTL,
	}
}

// Issue mints a participant token for userID in roomName. Identity and
// display name are both userID.
func (i *Issuer) Issue(userID, roomName string) (Grant, error) {
	if userID == "" {
		return Grant{}, fmt.Errorf("user id is required")
	}
	if roomName == "" {
		return Grant{}, fmt.Errorf("room name is required")
	}

	jwt, err := i.sign(userID, userID, roomGrant(roomName), i.ttl())
	if err != nil {
		return Grant{}, err
	}
	return Grant{Token: jwt, URL: i.URL, RoomName: roomName}, nil
}

// IssueAgent mints a token for the agent participant to join roomName
// directly, without worker dispatch.
func (i *Issuer) IssueAgent(identity, roomName string) (Grant, error) {
	if roomName == "" {
		return Grant{}, fmt.Errorf("room name is required")
	}
	grant := roomGrant(roomName)
	grant.Agent = true

	jwt, err := i.sign(identity, identity, grant, i.ttl())
	if err != nil {
		return Grant{}, err
	}
	return Grant{Token: jwt, URL: i.URL, RoomName: roomName}, nil
}

// IssueWorker mints the token authenticating a worker's dispatch connection.
func (i *Issuer) IssueWorker() (string, error) {
	return i.sign("", "", &auth.VideoGrant{Agent: true}, i.ttl())
}

func (i *Issuer) ttl() time.Duration {
	if i.TTL <= 0 {
		return DefaultTTL
	}
	return i.TTL
}

func (i *Issuer) sign(identity, name string, grant *auth.VideoGrant, ttl time.Duration) (string, error) {
	if i.APIKey == "" || i.APISecret == "" {
		return "", ErrMissingCredentials
	}

	at := auth.NewAccessToken(i.APIKey, i.APISecret).
		SetVideoGrant(grant).
		SetValidFor(ttl)
	if identity != "" {
		at.SetIdentity(identity)
	}
	if name != "" {
		at.SetName(name)
	}

	jwt, err := at.ToJWT()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return jwt, nil
}

func roomGrant(roomName string) *auth.VideoGrant {
	grant := &auth.VideoGrant{
		RoomJoin: true,
		Room:     roomName,
	}
	grant.SetCanPublish(true)
	grant.SetCanSubscribe(true)
	grant.SetCanPublishData(true)
	return grant
}
