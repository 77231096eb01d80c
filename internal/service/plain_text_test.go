package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/microcosm-cc/bluemonday"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/docflow-api/internal/dto"
	"github.com/noah-isme/docflow-api/internal/models"
	"github.com/noah-isme/docflow-api/pkg/apperror"
)

func TestPlainTextKeepsLiteralCharacters(t *testing.T) {
	policy := bluemonday.StrictPolicy()

	cases := []struct {
		input string
		want  string
	}{
		{"T < 5 & pH > 7", "T < 5 & pH > 7"},
		{"R&D plan", "R&D plan"},
		{"O'Brien \"quoted\"", "O'Brien \"quoted\""},
		{"<b>Lot</b> <script>x</script>", "Lot"},
		{"  padded  ", "padded"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, plainText(policy, tc.input), tc.input)
	}
}

func TestPlainTextFieldChecksStoredLength(t *testing.T) {
	policy := bluemonday.StrictPolicy()

	value, err := plainTextField(policy, "title", "<i>"+strings.Repeat("a", maxTitleLength)+"</i>", maxTitleLength)
	require.NoError(t, err)
	require.Len(t, value, maxTitleLength)

	_, err = plainTextField(policy, "title", strings.Repeat("&", maxTitleLength+1), maxTitleLength)
	require.True(t, apperror.IsValidation(err))
}

func TestDocumentTextIsStoredVerbatim(t *testing.T) {
	stack := newServiceStack(t)
	ctx := context.Background()

	document, err := stack.docSvc.Create(ctx, clientPrincipal, dto.DocumentCreateRequest{
		OwnerClientID: 7,
		Title:         "R&D plan <b>v2</b>",
		Path:          "/Q&A/O'Brien",
	})
	require.NoError(t, err)
	require.Equal(t, "R&D plan v2", document.Title)
	require.Equal(t, "/Q&A/O'Brien", document.Path)

	var stored models.Document
	require.NoError(t, stack.db.First(&stored, document.ID).Error)
	require.Equal(t, "R&D plan v2", stored.Title)
	require.Equal(t, "/Q&A/O'Brien", stored.Path)

	page, err := stack.directory.List(ctx, clientPrincipal, DirectoryQuery{Path: "Q&A/O'Brien", Page: 1, PerPage: 10})
	require.NoError(t, err)
	require.Len(t, page.Documents, 1)
	require.Equal(t, document.ID, page.Documents[0].ID)
}

func TestFormTextIsStoredVerbatim(t *testing.T) {
	stack := newServiceStack(t)

	form, err := stack.formSvc.Create(context.Background(), clientPrincipal, dto.FormCreateRequest{
		OwnerClientID: 7,
		Title:         "Limits & tolerances",
		Content:       json.RawMessage(`{"columns":["Limit"],"rows":[["T < 5 & pH > 7"]]}`),
	})
	require.NoError(t, err)
	require.Equal(t, "Limits & tolerances", form.Title)

	var stored models.Form
	require.NoError(t, stack.db.First(&stored, form.ID).Error)
	require.Equal(t, "Limits & tolerances", stored.Title)
	require.Contains(t, string(stored.Content), "T < 5 & pH > 7")

	var grid struct {
		Rows [][]string `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(form.Content, &grid))
	require.Equal(t, "T < 5 & pH > 7", grid.Rows[0][0])
}
