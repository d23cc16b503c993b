package inventory

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/DarkSmileee/BlockShelf/pkg/errors"
)

// exportHeader is the import/export column contract. Import matches on
// these names after normalization, so the two sides stay round-trippable.
var exportHeader = []string{
	"name", "part_id", "color", "quantity_total", "quantity_used",
	"storage_location", "image_url", "notes",
}

func (s *service) ExportCSV(ctx context.Context, viewerID, ownerID uuid.UUID, w io.Writer) error {
	resolved, err := s.guard.ResolveOwner(ctx, viewerID, ownerID)
	if err != nil {
		return err
	}

	items, err := s.repo.ListAll(ctx, resolved)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory for export")
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write export header")
	}
	for i := range items {
		item := &items[i]
		row := []string{
			item.Name,
			item.PartID,
			item.Color,
			strconv.Itoa(item.QuantityTotal),
			strconv.Itoa(item.QuantityUsed),
			item.StorageLocation,
			item.ImageURL,
			flattenNotes(item.Notes),
		}
		if err := writer.Write(row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write export row")
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "flush export")
	}
	return nil
}

// flattenNotes keeps each exported row on a single physical line.
func flattenNotes(notes string) string {
	notes = strings.ReplaceAll(notes, "\r\n", " ")
	notes = strings.ReplaceAll(notes, "\n", " ")
	return strings.TrimSpace(notes)
}
