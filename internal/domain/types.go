package domain

import "github.com/google/uuid"

type UserID = uuid.UUID
type SessionID = uuid.UUID
type OTPID = uuid.UUID
type TicketID = uuid.UUID
type TaskID = uuid.UUID
