package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"moodlog-insights/internal/config"
	"moodlog-insights/internal/models"
	"moodlog-insights/internal/repository"
	"moodlog-insights/pkg/database"
	logpkg "moodlog-insights/pkg/logger"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// 周报导出表头
var reviewExportHeader = []string{
	"Week Start",
	"Week End",
	"Average",
	"Highest",
	"Lowest",
	"Best Day",
	"Top Factors",
	"Highlights",
	"Viewed",
}

// 运维/调试工具：把指定用户的全部周报导出为 Excel 工作簿
func main() {
	userID := flag.String("user", "", "user id to export")
	output := flag.String("out", "weekly_reviews.xlsx", "output xlsx path")
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: export-reviews -user <user-id> [-out file.xlsx]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logpkg.NewLogger(cfg.Log.Level, "console", "export-reviews")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	reviewRepo := repository.NewReviewRepository(db, log)
	reviews, err := reviewRepo.ListReviews(context.Background(), *userID)
	if err != nil {
		log.Fatal("Failed to list reviews", zap.Error(err))
	}

	data, err := generateReviewExport(reviews)
	if err != nil {
		log.Fatal("Failed to generate export", zap.Error(err))
	}

	if err := os.WriteFile(*output, data, 0o644); err != nil {
		log.Fatal("Failed to write output file", zap.Error(err))
	}

	log.Info("Exported weekly reviews",
		zap.String("user_id", *userID),
		zap.Int("review_count", len(reviews)),
		zap.String("output", *output),
	)
}

// generateReviewExport 生成周报导出 Excel 文件
func generateReviewExport(reviews []models.WeeklyReview) ([]byte, error) {
	f := excelize.NewFile()

	sheetName := "Weekly Reviews"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, title := range reviewExportHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(sheetName, cell, title)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for row, review := range reviews {
		factors := make([]string, 0, len(review.Summary.TopFactors))
		for _, fs := range review.Summary.TopFactors {
			factors = append(factors, fmt.Sprintf("%s(%s)", fs.Name, fs.Impact))
		}

		values := []interface{}{
			review.WeekStart.Format("2006-01-02"),
			review.WeekEnd.Format("2006-01-02"),
			fmt.Sprintf("%.2f", review.Summary.Average),
			review.Summary.Highest,
			review.Summary.Lowest,
			review.Summary.BestDay.Format("2006-01-02"),
			strings.Join(factors, ", "),
			len(review.Highlights),
			review.Viewed,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheetName, cell, v)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	f.Close()

	return buf.Bytes(), nil
}
