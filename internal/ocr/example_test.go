package ocr_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"labscan/internal/ocr"
)

// Example demonstrates recognizing a lab report photo with Cloud Vision.
func Example() {
	// Create context with timeout for OCR processing
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Create engine - credentials handled internally from environment
	engine, err := ocr.NewVisionEngine(ctx)
	if err != nil {
		log.Fatalf("Failed to create OCR engine: %v", err)
	}
	defer engine.Close()

	img, err := ocr.LoadImage("lab_report.jpg")
	if err != nil {
		log.Fatalf("Failed to load image: %v", err)
	}

	text, err := ocr.NewRecognizer(engine).Recognize(ctx, img)
	if err != nil {
		log.Fatalf("Failed to recognize text: %v", err)
	}

	fmt.Printf("Recognized text (%d characters):\n%s", len(text), text)
}

// ExampleNewEngine demonstrates selecting an engine by name.
func ExampleNewEngine() {
	ctx := context.Background()

	engine, err := ocr.NewEngine(ctx, ocr.EngineConfig{
		Engine:      ocr.EngineDocumentAI,
		ProjectID:   "my-project",
		Location:    "eu",
		ProcessorID: "abc123",
	})
	if err != nil {
		log.Fatalf("Failed to create OCR engine: %v", err)
	}
	defer engine.Close()

	img, err := ocr.LoadImage("lab_report.heic")
	if err != nil {
		log.Fatalf("Failed to load image: %v", err)
	}

	observations, err := engine.Recognize(ctx, img, ocr.LevelFast)
	if err != nil {
		log.Fatalf("Failed to recognize text: %v", err)
	}
	for obs := range observations {
		for _, c := range obs.TopCandidates(3) {
			fmt.Printf("%.2f %s\n", c.Confidence, c.Text)
		}
	}
}
