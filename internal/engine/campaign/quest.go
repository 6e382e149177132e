package campaign

// QuestStatus tracks a quest's progress.
type QuestStatus string

const (
	// QuestActive marks a quest still in play.
	QuestActive QuestStatus = "active"
	// QuestCompleted marks a finished quest.
	QuestCompleted QuestStatus = "completed"
	// QuestFailed marks an irrecoverably failed quest.
	QuestFailed QuestStatus = "failed"
)

func validQuestStatus(status QuestStatus) bool {
	switch status {
	case QuestActive, QuestCompleted, QuestFailed:
		return true
	default:
		return false
	}
}

// Quest is one entry in the campaign quest log.
type Quest struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Status      QuestStatus `json:"status"`
}

// QuestPatch is a partial quest update. Nil fields are left unchanged.
type QuestPatch struct {
	ID          string
	Title       *string
	Description *string
	Status      *QuestStatus
}
