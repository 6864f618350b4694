package video

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	lkauth "github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
)

const livekitName = "livekit"

// roomService is the subset of the LiveKit room API used here.
type roomService interface {
	CreateRoom(ctx context.Context, req *livekit.CreateRoomRequest) (*livekit.Room, error)
	DeleteRoom(ctx context.Context, req *livekit.DeleteRoomRequest) (*livekit.DeleteRoomResponse, error)
}

// LiveKitProvider provisions rooms on a LiveKit server. LiveKit has no absolute
// room expiry, so the remaining lifetime is mapped onto the empty timeout and
// the reaper ends rooms that outlive the TTL.
type LiveKitProvider struct {
	svc       roomService
	joinURL   string
	apiKey    string
	apiSecret string
	now       func() time.Time
}

func NewLiveKitProvider(host, apiKey, apiSecret, joinURL string) (*LiveKitProvider, error) {
	if host == "" || apiKey == "" || apiSecret == "" {
		return nil, errors.New("video: livekit host, key and secret are required")
	}
	if joinURL == "" {
		joinURL = host
	}
	client := lksdk.NewRoomServiceClient(host, apiKey, apiSecret)
	return newLiveKitProvider(sdkRoomService{client: client}, joinURL, apiKey, apiSecret), nil
}

type sdkRoomService struct {
	client *lksdk.RoomServiceClient
}

func (s sdkRoomService) CreateRoom(ctx context.Context, req *livekit.CreateRoomRequest) (*livekit.Room, error) {
	return s.client.CreateRoom(ctx, req)
}

func (s sdkRoomService) DeleteRoom(ctx context.Context, req *livekit.DeleteRoomRequest) (*livekit.DeleteRoomResponse, error) {
	return s.client.DeleteRoom(ctx, req)
}

func newLiveKitProvider(svc roomService, joinURL, apiKey, apiSecret string) *LiveKitProvider {
	return &LiveKitProvider{
		svc:       svc,
		joinURL:   strings.TrimRight(joinURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		now:       time.Now,
	}
}

func (p *LiveKitProvider) Name() string { return livekitName }

func (p *LiveKitProvider) CreateRoom(ctx context.Context, spec RoomSpec) (Room, error) {
	const op = "create room"
	if spec.Name == "" {
		return Room{}, &ProviderError{Provider: livekitName, Op: op, Message: "room name is required"}
	}

	req := &livekit.CreateRoomRequest{
		Name:            spec.Name,
		MaxParticipants: clampUint32(spec.MaxParticipants),
	}
	if !spec.ExpiresAt.IsZero() {
		req.EmptyTimeout = clampUint32(int(math.Ceil(spec.ExpiresAt.Sub(p.now()).Seconds())))
	}

	room, err := p.svc.CreateRoom(ctx, req)
	if err != nil {
		return Room{}, &ProviderError{Provider: livekitName, Op: op, Err: err}
	}

	name := room.GetName()
	if name == "" {
		name = spec.Name
	}
	return Room{Name: name, URL: p.joinURL + "/" + name}, nil
}

func (p *LiveKitProvider) EndRoom(ctx context.Context, name string) error {
	const op = "end room"
	if name == "" {
		return &ProviderError{Provider: livekitName, Op: op, Message: "room name is required"}
	}
	if _, err := p.svc.DeleteRoom(ctx, &livekit.DeleteRoomRequest{Room: name}); err != nil {
		return &ProviderError{Provider: livekitName, Op: op, Err: err}
	}
	return nil
}

// JoinToken mints an access token that lets identity join roomName only.
func (p *LiveKitProvider) JoinToken(roomName, identity string, ttl time.Duration) (string, error) {
	const op = "join token"
	if roomName == "" || identity == "" {
		return "", &ProviderError{Provider: livekitName, Op: op, Message: "room name and identity are required"}
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	at := lkauth.NewAccessToken(p.apiKey, p.apiSecret)
	grant := &lkauth.VideoGrant{
		RoomJoin: true,
		Room:     roomName,
	}
	at.AddGrant(grant).
		SetIdentity(identity).
		SetValidFor(ttl)

	token, err := at.ToJWT()
	if err != nil {
		return "", &ProviderError{Provider: livekitName, Op: op, Err: err}
	}
	return token, nil
}

func clampUint32(n int) uint32 {
	if n <= 0 {
		return 0
	}
	if int64(n) > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(n)
}
