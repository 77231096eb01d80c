package docflowclient

import "github.com/noah-isme/docflow-api/internal/dto"

// Wire types exchanged with the API. They alias the server's DTOs so both
// sides decode the same JSON shapes.
type (
	FormResponse          = dto.FormResponse
	FormApprovalsResponse = dto.FormApprovalsResponse
	DocumentResponse      = dto.DocumentResponse
	DocumentPage          = dto.DocumentPage
	DocumentStatusRequest = dto.DocumentStatusRequest
	DirectoryRequest      = dto.DirectoryRequest
	ActivityRecord        = dto.ActivityLogCreateRequest
	ActivityLogResponse   = dto.ActivityLogResponse
	ActivityLogPage       = dto.ActivityLogPage
	ChainVerification     = dto.ChainVerification
)
