package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// keyedRecord is satisfied by every table model keyed by a text uuid column.
type keyedRecord[T any] interface {
	*T
	recordID() string
	setRecordID(id string)
}

// uuidHandlers builds repository handlers for a model whose primary key is
// the "id" column holding a uuid string.
func uuidHandlers[T any, P keyedRecord[T]]() repository.ModelHandlers[P] {
	return repository.ModelHandlers[P]{
		NewRecord: func() P {
			return P(new(T))
		},
		GetID: func(record P) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.recordID())
		},
		SetID: func(record P, id uuid.UUID) {
			if record == nil {
				return
			}
			record.setRecordID(id.String())
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record P) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.recordID())
		},
	}
}

func messageHandlers() repository.ModelHandlers[*messageRecord] {
	return uuidHandlers[messageRecord]()
}

func ruleHandlers() repository.ModelHandlers[*ruleRecord] {
	return uuidHandlers[ruleRecord]()
}

func jobHandlers() repository.ModelHandlers[*jobRecord] {
	return uuidHandlers[jobRecord]()
}

func logHandlers() repository.ModelHandlers[*logRecord] {
	return uuidHandlers[logRecord]()
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}

func newID() string {
	return uuid.NewString()
}
