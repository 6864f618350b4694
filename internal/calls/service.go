package calls

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telehealth-calls/internal/appointments"
	"telehealth-calls/internal/audit"
	"telehealth-calls/internal/events"
	"telehealth-calls/internal/rbac"
	"telehealth-calls/internal/video"
	"telehealth-calls/pkg/logger"
)

// Auditor records call transitions. *audit.Service satisfies it.
type Auditor interface {
	LogCallTransition(ctx context.Context, typ audit.EventType, appointmentID, callID, actorID int64, actorRole, message string) error
}

// Publisher announces call transitions to live subscribers.
type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

type Options struct {
	RoomTTL         time.Duration
	MaxParticipants int
	CreateTimeout   time.Duration

	Guard     CreateGuard
	Auditor   Auditor
	Publisher Publisher
}

// Service is the call session controller. It is the only writer of Call records
// and keeps them consistent with the video provider's rooms.
//
// Rules:
// - Only the appointment's doctor creates rooms.
// - Only the appointment's patient joins.
// - Either party ends; provider teardown failures never undo the end.
type Service struct {
	store     Store
	directory appointments.Directory
	provider  video.RoomProvider

	guard     CreateGuard
	auditor   Auditor
	publisher Publisher

	roomTTL         time.Duration
	maxParticipants int
	createTimeout   time.Duration

	clock func() time.Time
}

func NewService(store Store, directory appointments.Directory, provider video.RoomProvider, opts Options) *Service {
	s := &Service{
		store:           store,
		directory:       directory,
		provider:        provider,
		guard:           opts.Guard,
		auditor:         opts.Auditor,
		publisher:       opts.Publisher,
		roomTTL:         opts.RoomTTL,
		maxParticipants: opts.MaxParticipants,
		createTimeout:   opts.CreateTimeout,
		clock:           time.Now,
	}
	if s.guard == nil {
		s.guard = noopGuard{}
	}
	if s.roomTTL <= 0 {
		s.roomTTL = time.Hour
	}
	if s.maxParticipants <= 0 {
		s.maxParticipants = 2
	}
	if s.createTimeout <= 0 {
		s.createTimeout = 10 * time.Second
	}
	return s
}

// RoomName is unique per appointment and creation instant so a new call never
// collides with the room of an earlier, ended call.
func RoomName(appointmentID int64, at time.Time) string {
	return fmt.Sprintf("appointment-%d-%d", appointmentID, at.UnixMilli())
}

// Create provisions a room and records an ongoing call started by the doctor.
// When the appointment already has an ongoing call, that call is returned with ErrActiveCallExists.
func (s *Service) Create(ctx context.Context, appointmentID int64, caller Caller) (Call, error) {
	if appointmentID <= 0 || caller.ID <= 0 {
		return Call{}, ErrInvalidArgument
	}
	if caller.Role != rbac.RoleDoctor {
		return Call{}, ErrUnauthorized
	}

	appt, err := s.lookup(ctx, appointmentID)
	if err != nil {
		return Call{}, err
	}
	if appt.DoctorID != caller.ID {
		return Call{}, ErrUnauthorized
	}

	if existing, err := s.store.FindActive(ctx, appointmentID); err == nil {
		return s.withJoinToken(ctx, existing, caller), ErrActiveCallExists
	} else if !errors.Is(err, ErrNoActiveCall) {
		return Call{}, err
	}

	log := logger.From(ctx)

	release, err := s.guard.Acquire(ctx, appointmentID)
	switch {
	case errors.Is(err, ErrCreateInProgress):
		return Call{}, err
	case err != nil:
		log.Warn("create guard unavailable, relying on database constraint", "appointment_id", appointmentID, "err", err)
	default:
		defer release()
	}

	now := s.clock().UTC()
	spec := video.RoomSpec{
		Name:            RoomName(appointmentID, now),
		MaxParticipants: s.maxParticipants,
		EnableChat:      true,
		StartVideoOff:   false,
		StartAudioOff:   false,
		ExpiresAt:       now.Add(s.roomTTL),
	}

	createCtx, cancel := context.WithTimeout(ctx, s.createTimeout)
	room, err := s.provider.CreateRoom(createCtx, spec)
	cancel()
	if err != nil {
		log.Error("create video room", "appointment_id", appointmentID, "provider", s.provider.Name(), "err", err)
		return Call{}, fmt.Errorf("%w: %w", ErrProvider, err)
	}

	call, err := s.store.Insert(ctx, Call{
		AppointmentID: appointmentID,
		RoomURL:       room.URL,
		RoomName:      room.Name,
		StartedAt:     now,
		Status:        StatusOngoing,
		StartedByID:   caller.ID,
		StartedByType: PartyDoctor,
		DoctorJoined:  true,
		PatientJoined: false,
	})
	if err != nil {
		// The room exists at the provider but no record points at it.
		s.endRoom(ctx, appointmentID, 0, room.Name)
		if errors.Is(err, ErrActiveCallExists) {
			existing, findErr := s.store.FindActive(ctx, appointmentID)
			if findErr != nil {
				return Call{}, ErrActiveCallExists
			}
			return existing, ErrActiveCallExists
		}
		return Call{}, err
	}

	log.Info("call created", "appointment_id", appointmentID, "call_id", call.CallID, "room_name", call.RoomName)
	s.record(ctx, audit.EventTypeCallCreated, call, caller, "video room created")
	s.publish(ctx, events.TypeCallStarted, call, caller.Role)
	return s.withJoinToken(ctx, call, caller), nil
}

// Status returns the appointment's ongoing call or ErrNoActiveCall.
// An unknown appointment has no active call.
func (s *Service) Status(ctx context.Context, appointmentID int64, caller Caller) (Call, error) {
	if appointmentID <= 0 || caller.ID <= 0 {
		return Call{}, ErrInvalidArgument
	}

	appt, err := s.lookup(ctx, appointmentID)
	if errors.Is(err, ErrNotFound) {
		return Call{}, ErrNoActiveCall
	}
	if err != nil {
		return Call{}, err
	}
	if err := authorizeReader(appt, caller); err != nil {
		return Call{}, err
	}

	call, err := s.store.FindActive(ctx, appointmentID)
	if err != nil {
		return Call{}, err
	}
	return s.withJoinToken(ctx, call, caller), nil
}

// History lists every call of an appointment, newest first.
func (s *Service) History(ctx context.Context, appointmentID int64, caller Caller) ([]Call, error) {
	if appointmentID <= 0 || caller.ID <= 0 {
		return nil, ErrInvalidArgument
	}

	appt, err := s.lookup(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if err := authorizeReader(appt, caller); err != nil {
		return nil, err
	}
	return s.store.ListByAppointment(ctx, appointmentID)
}

// Join marks the appointment's patient as present in an ongoing call.
func (s *Service) Join(ctx context.Context, callID int64, caller Caller) (Call, error) {
	if callID <= 0 || caller.ID <= 0 {
		return Call{}, ErrInvalidArgument
	}
	if caller.Role != rbac.RolePatient {
		return Call{}, ErrUnauthorized
	}

	current, err := s.store.Get(ctx, callID)
	if err != nil {
		return Call{}, err
	}
	appt, err := s.lookup(ctx, current.AppointmentID)
	if err != nil {
		return Call{}, err
	}
	if appt.PatientID != caller.ID {
		return Call{}, ErrUnauthorized
	}
	if current.Status != StatusOngoing {
		return Call{}, ErrNotFound
	}

	call, err := s.store.MarkPatientJoined(ctx, callID)
	if err != nil {
		return Call{}, err
	}

	logger.From(ctx).Info("patient joined call", "appointment_id", call.AppointmentID, "call_id", call.CallID)
	s.record(ctx, audit.EventTypeCallJoined, call, caller, "patient joined")
	s.publish(ctx, events.TypeCallJoined, call, caller.Role)
	return s.withJoinToken(ctx, call, caller), nil
}

// End terminates an ongoing call for either party. The record is ended before the
// provider room is torn down; teardown failures are logged and never returned.
func (s *Service) End(ctx context.Context, callID int64, caller Caller) (Call, error) {
	if callID <= 0 || caller.ID <= 0 {
		return Call{}, ErrInvalidArgument
	}

	current, err := s.store.Get(ctx, callID)
	if err != nil {
		return Call{}, err
	}
	appt, err := s.lookup(ctx, current.AppointmentID)
	if err != nil {
		return Call{}, err
	}
	if err := authorizeParty(appt, caller); err != nil {
		return Call{}, err
	}
	if current.Status != StatusOngoing {
		return Call{}, ErrNotFound
	}

	call, err := s.store.MarkEnded(ctx, callID, s.clock().UTC())
	if err != nil {
		return Call{}, err
	}

	logger.From(ctx).Info("call ended", "appointment_id", call.AppointmentID, "call_id", call.CallID, "by", caller.Role)
	s.endRoom(ctx, call.AppointmentID, call.CallID, call.RoomName)
	s.record(ctx, audit.EventTypeCallEnded, call, caller, "call ended")
	s.publish(ctx, events.TypeCallEnded, call, caller.Role)
	return call, nil
}

// ExpireStale ends ongoing calls older than the room TTL. The provider has
// already expired those rooms, so teardown is a courtesy.
func (s *Service) ExpireStale(ctx context.Context, limit int) (int, error) {
	now := s.clock().UTC()
	stale, err := s.store.ListStale(ctx, now.Add(-s.roomTTL), limit)
	if err != nil {
		return 0, err
	}

	system := Caller{Role: audit.ActorSystem}
	n := 0
	for _, c := range stale {
		call, err := s.store.MarkEnded(ctx, c.CallID, now)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return n, err
		}
		n++
		s.endRoom(ctx, call.AppointmentID, call.CallID, call.RoomName)
		s.record(ctx, audit.EventTypeCallExpired, call, system, "room ttl elapsed")
		s.publish(ctx, events.TypeCallEnded, call, system.Role)
	}
	return n, nil
}

func (s *Service) lookup(ctx context.Context, appointmentID int64) (appointments.Appointment, error) {
	appt, err := s.directory.Get(ctx, appointmentID)
	if errors.Is(err, appointments.ErrNotFound) {
		return appointments.Appointment{}, fmt.Errorf("%w: appointment %d", ErrNotFound, appointmentID)
	}
	return appt, err
}

func authorizeParty(appt appointments.Appointment, caller Caller) error {
	switch caller.Role {
	case rbac.RoleDoctor:
		if appt.DoctorID == caller.ID {
			return nil
		}
	case rbac.RolePatient:
		if appt.PatientID == caller.ID {
			return nil
		}
	}
	return ErrUnauthorized
}

// authorizeReader also admits admins, who may observe but never mutate calls.
func authorizeReader(appt appointments.Appointment, caller Caller) error {
	if caller.Role == rbac.RoleAdmin {
		return nil
	}
	return authorizeParty(appt, caller)
}

// ParticipantIdentity is the room identity of a caller, e.g. "patient-42".
func ParticipantIdentity(caller Caller) string {
	return fmt.Sprintf("%s-%d", caller.Role, caller.ID)
}

// withJoinToken attaches a room token for the caller when the provider needs
// one. Admins only observe and never get a token. A minting failure leaves the
// call without a token; the next status read retries.
func (s *Service) withJoinToken(ctx context.Context, call Call, caller Caller) Call {
	issuer, ok := s.provider.(video.JoinTokenIssuer)
	if !ok || !rbac.IsParticipantRole(caller.Role) || call.Status != StatusOngoing {
		return call
	}
	ttl := call.StartedAt.Add(s.roomTTL).Sub(s.clock())
	if ttl < time.Minute {
		ttl = time.Minute
	}
	token, err := issuer.JoinToken(call.RoomName, ParticipantIdentity(caller), ttl)
	if err != nil {
		logger.From(ctx).Warn("mint room join token", "call_id", call.CallID, "err", err)
		return call
	}
	call.JoinToken = token
	return call
}

func (s *Service) endRoom(ctx context.Context, appointmentID, callID int64, roomName string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.createTimeout)
	defer cancel()

	if err := s.provider.EndRoom(ctx, roomName); err != nil {
		logger.From(ctx).Warn("end video room",
			"appointment_id", appointmentID,
			"call_id", callID,
			"room_name", roomName,
			"provider", s.provider.Name(),
			"err", err,
		)
		if s.auditor != nil && callID != 0 {
			_ = s.auditor.LogCallTransition(ctx, audit.EventTypeRoomTeardownFailed, appointmentID, callID, 0, audit.ActorSystem, err.Error())
		}
	}
}

func (s *Service) record(ctx context.Context, typ audit.EventType, call Call, actor Caller, msg string) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.LogCallTransition(ctx, typ, call.AppointmentID, call.CallID, actor.ID, actor.Role, msg); err != nil {
		logger.From(ctx).Warn("audit call transition", "type", typ, "call_id", call.CallID, "err", err)
	}
}

func (s *Service) publish(ctx context.Context, typ string, call Call, actorRole string) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, events.Event{
		Type:          typ,
		AppointmentID: call.AppointmentID,
		CallID:        call.CallID,
		Status:        string(call.Status),
		ActorRole:     actorRole,
		OccurredAt:    s.clock().UTC(),
	})
	if err != nil {
		logger.From(ctx).Warn("publish call event", "type", typ, "call_id", call.CallID, "err", err)
	}
}
