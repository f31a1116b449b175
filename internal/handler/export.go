package handler

import (
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"time"

	"gowa-gateway/internal/model"
	"gowa-gateway/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/xuri/excelize/v2"
)

type ExportHandler struct {
	Registry *service.Registry
}

func NewExportHandler(registry *service.Registry) *ExportHandler {
	return &ExportHandler{Registry: registry}
}

type exportRow struct {
	ChatID      string
	DisplayName string
	MessageID   string
	Direction   string
	Sender      string
	Text        string
	Timestamp   string
}

// GET /api/sessions/:sessionId/chats/export?format=xlsx|csv
// Dump seluruh chat log session ke file. Default xlsx.
func (h *ExportHandler) Export(c echo.Context) error {
	sessionID := c.Param("sessionId")
	view, err := h.Registry.SessionView(sessionID)
	if err != nil {
		return mapRegistryError(c, err)
	}

	rows := flattenChatLogs(view)

	format := c.QueryParam("format")
	if format == "" {
		format = "xlsx"
	}

	if format == "xlsx" {
		return exportToExcel(c, rows, sessionID)
	}
	return exportToCSV(c, rows, sessionID)
}

// flattenChatLogs susun semua chat log jadi baris flat, urut per chat lalu
// urut waktu (log per chat sudah FIFO).
func flattenChatLogs(view model.SessionView) []exportRow {
	chatIDs := make([]string, 0, len(view.MessagesByChat))
	for chatID := range view.MessagesByChat {
		chatIDs = append(chatIDs, chatID)
	}
	sort.Strings(chatIDs)

	var rows []exportRow
	for _, chatID := range chatIDs {
		displayName := view.DisplayNames[chatID]
		for _, msg := range view.MessagesByChat[chatID] {
			direction := "in"
			if msg.FromMe {
				direction = "out"
			}
			rows = append(rows, exportRow{
				ChatID:      chatID,
				DisplayName: displayName,
				MessageID:   msg.ID,
				Direction:   direction,
				Sender:      msg.SenderName,
				Text:        msg.Text,
				Timestamp:   time.Unix(msg.Timestamp, 0).UTC().Format(time.RFC3339),
			})
		}
	}
	return rows
}

func exportToExcel(c echo.Context, rows []exportRow, sessionID string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Messages"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return ErrorResponse(c, 500, "Failed to create Excel sheet", "EXCEL_ERROR", err.Error())
	}

	headers := []string{"No", "Chat", "Display Name", "Message ID", "Direction", "Sender", "Text", "Timestamp"}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	f.SetCellStyle(sheetName, "A1", "H1", headerStyle)

	for i, row := range rows {
		r := i + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", r), i+1)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", r), row.ChatID)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", r), row.DisplayName)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", r), row.MessageID)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", r), row.Direction)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", r), row.Sender)
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", r), row.Text)
		f.SetCellValue(sheetName, fmt.Sprintf("H%d", r), row.Timestamp)
	}

	f.SetColWidth(sheetName, "A", "A", 5)
	f.SetColWidth(sheetName, "B", "B", 30)
	f.SetColWidth(sheetName, "C", "C", 25)
	f.SetColWidth(sheetName, "D", "D", 25)
	f.SetColWidth(sheetName, "E", "E", 10)
	f.SetColWidth(sheetName, "F", "F", 20)
	f.SetColWidth(sheetName, "G", "G", 60)
	f.SetColWidth(sheetName, "H", "H", 22)

	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	filename := fmt.Sprintf("messages_%s.xlsx", sessionID)
	c.Response().Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Response().Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	return f.Write(c.Response().Writer)
}

func exportToCSV(c echo.Context, rows []exportRow, sessionID string) error {
	c.Response().Header().Set("Content-Type", "text/csv")
	filename := fmt.Sprintf("messages_%s.csv", sessionID)
	c.Response().Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	writer := csv.NewWriter(c.Response().Writer)
	defer writer.Flush()

	headers := []string{"No", "Chat", "Display Name", "Message ID", "Direction", "Sender", "Text", "Timestamp"}
	if err := writer.Write(headers); err != nil {
		return ErrorResponse(c, 500, "Failed to write CSV headers", "CSV_ERROR", err.Error())
	}

	for i, row := range rows {
		record := []string{
			strconv.Itoa(i + 1),
			row.ChatID,
			row.DisplayName,
			row.MessageID,
			row.Direction,
			row.Sender,
			row.Text,
			row.Timestamp,
		}
		if err := writer.Write(record); err != nil {
			return ErrorResponse(c, 500, "Failed to write CSV row", "CSV_ERROR", err.Error())
		}
	}
	return nil
}
