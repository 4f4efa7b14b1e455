package document

import (
	"time"

	"github.com/vedran77/tandem/internal/docstore"
	"github.com/vedran77/tandem/internal/domain"
	"github.com/vedran77/tandem/internal/livesync"
)

// Live query definitions shared by the repositories and the live
// subscriptions built on them.

func AccountQuery(id string) docstore.Query {
	return docstore.NewQuery(CollUsers).Where(docstore.IDField, docstore.OpEqual, id)
}

func MailboxQuery(accountID string) docstore.Query {
	return docstore.NewQuery(CollNotifications).Where(docstore.IDField, docstore.OpEqual, accountID)
}

func TypingQuery(chatID string) docstore.Query {
	return docstore.NewQuery(CollChats).Where(docstore.IDField, docstore.OpEqual, chatID)
}

// MessagesQuery orders by server timestamp; message ids break ties.
func MessagesQuery(chatID string) docstore.Query {
	return docstore.NewQuery(MessagesCollection(chatID)).
		OrderBy("timestamp", false).
		OrderBy(docstore.IDField, false)
}

func IncomingRequestsQuery(toID string) docstore.Query {
	return docstore.NewQuery(CollRequests).
		Where("to", docstore.OpEqual, toID).
		Where("status", docstore.OpEqual, domain.RequestPending).
		OrderBy("createdAt", false)
}

func PersonalGoalsQuery(ownerID string) docstore.Query {
	return docstore.NewQuery(PersonalGoalsCollection(ownerID)).OrderBy("createdAt", false)
}

func SharedGoalsQuery(memberID string) docstore.Query {
	return docstore.NewQuery(CollSharedGoals).
		Where("members", docstore.OpArrayContains, memberID).
		OrderBy("createdAt", false)
}

func EventsQuery(memberID string) docstore.Query {
	return docstore.NewQuery(CollSharedEvents).
		Where("members", docstore.OpArrayContains, memberID).
		OrderBy("start", false)
}

func UpcomingEventsQuery(memberID string, from time.Time) docstore.Query {
	return EventsQuery(memberID).Where("start", docstore.OpGreaterEqual, from)
}

func MemoriesQuery(memberID string) docstore.Query {
	return docstore.NewQuery(CollSharedMemories).
		Where("members", docstore.OpArrayContains, memberID).
		OrderBy("createdAt", true)
}

func NotesQuery(memberID string) docstore.Query {
	return docstore.NewQuery(CollNotes).
		Where("members", docstore.OpArrayContains, memberID).
		OrderBy("createdAt", true)
}

var (
	ProjectAccount = livesync.Decode(setAccountID)
	ProjectRequest = livesync.Decode(setRequestID)
	ProjectMessage = livesync.Decode(setMessageID)
	ProjectGoal    = livesync.Decode(setGoalID)
	ProjectEvent   = livesync.Decode(setEventID)
	ProjectMemory  = livesync.Decode(setMemoryID)
	ProjectNote    = livesync.Decode(setNoteID)

	ProjectMailbox = livesync.Projector[domain.Mailbox](func(doc docstore.Document) (domain.Mailbox, error) {
		return mailboxOf(doc), nil
	})
	// ProjectTyping yields an empty state for a chat nobody has typed in.
	ProjectTyping = livesync.Projector[domain.TypingState](func(doc docstore.Document) (domain.TypingState, error) {
		st, _ := typingOf(doc)
		return st, nil
	})
)
