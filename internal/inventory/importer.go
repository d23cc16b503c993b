package inventory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/DarkSmileee/BlockShelf/pkg/db/models"
	pkgerrors "github.com/DarkSmileee/BlockShelf/pkg/errors"
	"github.com/DarkSmileee/BlockShelf/pkg/sanitize"
)

func (s *service) Import(ctx context.Context, viewerID uuid.UUID, filename string, file io.Reader, size int64) (ImportResult, error) {
	if viewerID == uuid.Nil {
		return ImportResult{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	maxBytes := int64(s.cfg.MaxUploadMB) << 20
	if size > maxBytes {
		return ImportResult{}, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("upload exceeds the %dMB limit", s.cfg.MaxUploadMB))
	}

	rows, err := readImportRows(filename, io.LimitReader(file, maxBytes+1))
	if err != nil {
		return ImportResult{}, err
	}
	if len(rows) < 2 {
		return ImportResult{}, pkgerrors.New(pkgerrors.CodeValidation, "file has no data rows")
	}

	columns := headerIndex(rows[0])
	if _, ok := columns["part_id"]; !ok {
		return ImportResult{}, pkgerrors.New(pkgerrors.CodeValidation, "a part_id column is required")
	}
	data := rows[1:]
	if len(data) > s.cfg.MaxRows {
		return ImportResult{}, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("file exceeds the %d row limit", s.cfg.MaxRows))
	}

	var result ImportResult
	seen := map[string]bool{}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		for _, row := range data {
			record := rowValues(columns, row)
			if blankRow(record) {
				continue
			}

			partID := strings.TrimSpace(record["part_id"])
			if partID == "" {
				result.Skipped++
				continue
			}
			color := sanitize.Text(record["color"])

			key := partID + "|" + color
			if seen[key] {
				result.Skipped++
				result.DupeKeys = append(result.DupeKeys, key)
				continue
			}
			seen[key] = true

			total, totalSet := parseQuantity(record["quantity_total"])
			used, usedSet := parseQuantity(record["quantity_used"])
			if total < 0 || used < 0 || (totalSet && usedSet && used > total) {
				result.Skipped++
				continue
			}

			if err := s.importRow(tx, viewerID, record, partID, color, total, totalSet, used, usedSet, &result); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply import")
	}
	return result, nil
}

// importRow creates or merges one record inside the import transaction.
// Merged rows follow the same rule as the catalog upserts: blank imported
// values never overwrite stored ones.
func (s *service) importRow(tx *gorm.DB, ownerID uuid.UUID, record map[string]string, partID, color string, total int, totalSet bool, used int, usedSet bool, result *ImportResult) error {
	name := sanitize.Text(record["name"])
	location := sanitize.Text(record["storage_location"])
	imageURL := sanitize.URL(record["image_url"])
	notes := sanitize.Text(record["notes"])

	var existing models.InventoryItem
	err := tx.Where("user_id = ? AND part_id = ? AND color = ?", ownerID, partID, color).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if name == "" {
			name = fallbackItemName
		}
		item := models.InventoryItem{
			UserID:          ownerID,
			Name:            name,
			PartID:          partID,
			Color:           color,
			QuantityTotal:   total,
			QuantityUsed:    used,
			StorageLocation: location,
			ImageURL:        imageURL,
			Notes:           notes,
		}
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		result.Added++
		return nil
	}
	if err != nil {
		return err
	}

	changed := false
	if name != "" && name != existing.Name {
		existing.Name = name
		changed = true
	}
	if totalSet && total != existing.QuantityTotal {
		existing.QuantityTotal = total
		changed = true
	}
	if usedSet && used != existing.QuantityUsed {
		existing.QuantityUsed = used
		changed = true
	}
	if location != "" && location != existing.StorageLocation {
		existing.StorageLocation = location
		changed = true
	}
	if imageURL != "" && imageURL != existing.ImageURL {
		existing.ImageURL = imageURL
		changed = true
	}
	if notes != "" && !strings.Contains(existing.Notes, notes) {
		if existing.Notes == "" {
			existing.Notes = notes
		} else {
			existing.Notes = existing.Notes + "\n" + notes
		}
		changed = true
	}
	if existing.QuantityUsed > existing.QuantityTotal {
		existing.QuantityTotal = existing.QuantityUsed
	}

	if !changed {
		result.Skipped++
		return nil
	}
	if err := tx.Save(&existing).Error; err != nil {
		return err
	}
	result.Updated++
	return nil
}

// readImportRows loads the raw cell grid from a CSV or XLSX upload.
func readImportRows(filename string, file io.Reader) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		reader := csv.NewReader(file)
		reader.FieldsPerRecord = -1
		rows, err := reader.ReadAll()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse csv upload")
		}
		return rows, nil
	case ".xlsx":
		book, err := excelize.OpenReader(file)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse xlsx upload")
		}
		defer book.Close()
		sheets := book.GetSheetList()
		if len(sheets) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "xlsx upload has no sheets")
		}
		rows, err := book.GetRows(sheets[0])
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read xlsx sheet")
		}
		return rows, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported upload type, expected .csv or .xlsx")
	}
}

// headerIndex normalizes header cells ("Part ID" -> part_id) into a
// name -> column map.
func headerIndex(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, cell := range header {
		cell = strings.TrimPrefix(cell, "\ufeff")
		cell = strings.ToLower(strings.TrimSpace(cell))
		cell = strings.ReplaceAll(cell, " ", "_")
		if cell != "" {
			columns[cell] = i
		}
	}
	return columns
}

func rowValues(columns map[string]int, row []string) map[string]string {
	record := make(map[string]string, len(columns))
	for name, idx := range columns {
		if idx < len(row) {
			record[name] = strings.TrimSpace(row[idx])
		}
	}
	return record
}

func blankRow(record map[string]string) bool {
	for _, value := range record {
		if value != "" {
			return false
		}
	}
	return true
}

// parseQuantity reports whether the cell held a usable number at all, so
// merges can tell "0" apart from an empty cell.
func parseQuantity(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return value, true
}
