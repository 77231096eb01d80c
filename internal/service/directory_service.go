package service

import (
	"context"
	"fmt"
	"math"
	"path"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/noah-isme/docflow-api/internal/dto"
	"github.com/noah-isme/docflow-api/internal/repository"
	"github.com/noah-isme/docflow-api/pkg/apperror"
)

const maxDirectoryPerPage = 200

// DirectoryQuery selects one page of the documents stored at a path.
type DirectoryQuery struct {
	Path    string
	Page    int
	PerPage int
	// ClientID narrows an unrestricted principal's listing to one tenant.
	ClientID *uint
}

// DirectoryService lists documents by tenant and path with stable pagination.
type DirectoryService interface {
	List(ctx context.Context, principal Principal, query DirectoryQuery) (dto.DocumentPage, error)
}

type directoryService struct {
	repo      repository.DocumentRepository
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewDirectoryService constructs the directory listing service.
func NewDirectoryService(repo repository.DocumentRepository, logger zerolog.Logger) DirectoryService {
	return &directoryService{
		repo:      repo,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "directory_service").Logger(),
	}
}

func (s *directoryService) List(ctx context.Context, principal Principal, query DirectoryQuery) (dto.DocumentPage, error) {
	if query.Page < 1 {
		return dto.DocumentPage{}, apperror.NewInvalidArgument("page", query.Page, "must be at least 1")
	}
	if query.PerPage < 1 || query.PerPage > maxDirectoryPerPage {
		return dto.DocumentPage{}, apperror.NewInvalidArgument("perPage", query.PerPage, fmt.Sprintf("must be between 1 and %d", maxDirectoryPerPage))
	}

	scope, err := TenantScope(principal)
	if err != nil {
		return dto.DocumentPage{}, err
	}
	if scope == nil {
		scope = query.ClientID
	} else if query.ClientID != nil && *query.ClientID != *scope {
		return dto.DocumentPage{}, ErrForbidden
	}

	filter := repository.DocumentFilter{
		OwnerClientID: scope,
		Path:          NormalizeDirectoryPath(plainText(s.sanitizer, query.Path)),
		Page:          query.Page,
		PageSize:      query.PerPage,
	}

	documents, total, err := s.repo.ListByPath(ctx, filter)
	if err != nil {
		return dto.DocumentPage{}, err
	}

	items := make([]dto.DocumentResponse, 0, len(documents))
	for _, document := range documents {
		items = append(items, dto.NewDocumentResponse(document))
	}

	return dto.DocumentPage{
		Documents: items,
		PageCount: int(math.Ceil(float64(total) / float64(query.PerPage))),
		Page:      query.Page,
		PerPage:   query.PerPage,
		Total:     total,
	}, nil
}

// NormalizeDirectoryPath returns the canonical form of a directory path: slash
// separated, rooted, without a trailing slash.
func NormalizeDirectoryPath(value string) string {
	trimmed := strings.TrimSpace(strings.ReplaceAll(value, "\\", "/"))
	return path.Clean("/" + trimmed)
}
