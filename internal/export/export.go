// Package export produces XLSX workbooks of a user's extracted
// documents, with reviewer corrections applied over the AI values.
package export

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/smartdoc/policyd/internal/model"
	"github.com/smartdoc/policyd/internal/store"
)

// Service writes document exports.
type Service struct {
	store  store.Store
	schema *model.Schema
}

// NewService creates an export Service.
func NewService(st store.Store) *Service {
	return &Service{store: st, schema: model.DefaultSchema()}
}

// WriteDocuments writes all of the owner's documents to w as an XLSX
// workbook, newest first. Corrected values take precedence over the
// extracted ones.
func (s *Service) WriteDocuments(ctx context.Context, ownerID string, w io.Writer) error {
	if ownerID == "" {
		return eris.New("export: missing user id")
	}

	docs, err := s.store.ListDocuments(ctx, ownerID)
	if err != nil {
		return eris.Wrap(err, "export: list documents")
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Documents")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	header.AddCell().Value = "PDF Name"
	for _, f := range s.schema.Fields {
		header.AddCell().Value = f.Key
	}
	header.AddCell().Value = "Accuracy"
	header.AddCell().Value = "Pages"
	header.AddCell().Value = "Words"
	header.AddCell().Value = "Uploaded"

	for i := range docs {
		doc := &docs[i]
		row := sheet.AddRow()
		row.AddCell().Value = doc.Name
		for _, f := range s.schema.Fields {
			row.AddCell().Value = fieldValue(doc, f.Key)
		}
		row.AddCell().SetFloat(doc.AIData.Accuracy())
		row.AddCell().SetInt(doc.PageCount)
		row.AddCell().SetInt(doc.WordCount)
		row.AddCell().Value = doc.Timestamp.Format("02-01-2006 15:04")
	}

	if err := file.Write(w); err != nil {
		return eris.Wrap(err, "export: write workbook")
	}
	return nil
}

// fieldValue resolves the effective value of a field: the reviewer's
// correction when one exists, otherwise the extracted value.
func fieldValue(doc *model.Document, key string) string {
	if v, ok := doc.UserData[key]; ok && v != "" {
		return v
	}
	return doc.AIData.StringValue(key)
}
