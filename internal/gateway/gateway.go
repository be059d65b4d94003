// Package gateway defines the contract between the quiz engine and the
// external messaging transport. The engine never renders text; it hands
// structured payloads to a Gateway and receives tagged inbound events.
package gateway

import "context"

// Gateway is the outbound half of the messaging collaborator. All methods
// are fire-and-forget from the engine's point of view: errors are logged by
// the caller and never abort a state transition.
type Gateway interface {
	SendToGroup(ctx context.Context, groupID string, payload any) error
	SendToPrivate(ctx context.Context, userID string, payload any) error

	// SetGroupRestricted asks the transport to mute non-admin posting in the
	// group. Best-effort.
	SetGroupRestricted(ctx context.Context, groupID string, restricted bool) error

	// ResolveDisplayName returns the transport profile name for an identity,
	// or false when unavailable.
	ResolveDisplayName(ctx context.Context, userID string) (string, bool)
}

// GroupCommand is a message posted in a group chat.
type GroupCommand struct {
	GroupID  string
	SenderID string
	// IsOwnerCandidate is set when the transport considers the sender an
	// admin of the group; it gates quiz creation only, not subsequent owner
	// commands, which check the session's ownerID.
	IsOwnerCandidate bool
	RawText          string
	MentionedIDs     []string
}

// PrivateMessage is a one-to-one message from a participant.
type PrivateMessage struct {
	SenderID string
	RawText  string
}

// Inbound is implemented by the quiz engine; transport adapters deliver
// every received message through it.
type Inbound interface {
	HandleGroupCommand(ctx context.Context, cmd GroupCommand)
	HandlePrivateMessage(ctx context.Context, msg PrivateMessage)
}
