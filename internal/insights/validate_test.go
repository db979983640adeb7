package insights

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/zombar/reviewinsights/internal/models"
)

const summaryJSON = `{"summary":{"executiveSummary":"Mostly positive.","overallSentiment":"positive","averageRating":4.2,"sentimentDistribution":{"positive":70,"neutral":20,"negative":10},"ratingDistribution":{"1":1,"2":1,"3":4,"4":8,"5":6}}}`

func TestExtractJSONForms(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"bare object", summaryJSON},
		{"surrounding whitespace", "\n\n  " + summaryJSON + "  \n"},
		{"fenced block", "Here is the analysis:\n```json\n" + summaryJSON + "\n```\nLet me know."},
		{"unlabeled fence", "```\n" + summaryJSON + "\n```"},
		{"prose around object", "The result is " + summaryJSON + " as requested."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := ExtractJSON(tt.text)
			if err != nil {
				t.Fatalf("ExtractJSON failed: %v", err)
			}
			if strings.TrimSpace(string(raw)) != summaryJSON {
				t.Errorf("extracted %q, want the original object", raw)
			}
		})
	}
}

func TestFencedAndUnfencedValidateIdentically(t *testing.T) {
	bare, err := ParseInsight(summaryJSON, models.AnalysisSummary)
	if err != nil {
		t.Fatalf("bare parse failed: %v", err)
	}
	fenced, err := ParseInsight("```json\n"+summaryJSON+"\n```", models.AnalysisSummary)
	if err != nil {
		t.Fatalf("fenced parse failed: %v", err)
	}
	if !reflect.DeepEqual(bare, fenced) {
		t.Errorf("fenced result differs from bare result:\n%+v\n%+v", fenced, bare)
	}
}

func TestExtractJSONBracesInStrings(t *testing.T) {
	text := `noise {"summary":{"executiveSummary":"odd {chars} and \"quotes\" here","ratingDistribution":{"5":1}}} trailing`
	raw, err := ExtractJSON(text)
	if err != nil {
		t.Fatalf("ExtractJSON failed: %v", err)
	}
	result, err := ValidateInsight(raw, models.AnalysisSummary)
	if err != nil {
		t.Fatalf("ValidateInsight failed: %v", err)
	}
	if !strings.Contains(result.Summary.ExecutiveSummary, "{chars}") {
		t.Errorf("string content mangled: %q", result.Summary.ExecutiveSummary)
	}
}

func TestExtractJSONNoObjectCarriesRawText(t *testing.T) {
	tests := []string{
		"",
		"I could not analyze these reviews.",
		"[1, 2, 3]",
	}
	for _, text := range tests {
		_, err := ExtractJSON(text)
		if err == nil {
			t.Errorf("ExtractJSON(%q) succeeded, want parse error", text)
			continue
		}
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Errorf("ExtractJSON(%q) error type %T, want *ParseError", text, err)
			continue
		}
		if parseErr.RawText != text {
			t.Errorf("parse error raw text = %q, want %q", parseErr.RawText, text)
		}
	}
}

func TestValidateInsightRejectsMissingSection(t *testing.T) {
	tests := []struct {
		analysisType string
		json         string
		wantErr      bool
	}{
		{models.AnalysisSummary, summaryJSON, false},
		{models.AnalysisThemes, summaryJSON, true},
		{models.AnalysisThemes, `{"themes":{"positive":[],"negative":[]}}`, false},
		{models.AnalysisIssues, `{"issues":[]}`, false},
		{models.AnalysisIssues, `{"summary":{}}`, true},
		{models.AnalysisComparison, `{"locationComparison":[]}`, false},
		{models.AnalysisTrends, `{"trends":{"direction":"improving"}}`, false},
		{models.AnalysisTrends, `{}`, true},
	}
	for _, tt := range tests {
		_, err := ValidateInsight([]byte(tt.json), tt.analysisType)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateInsight(%s, %s) error = %v, wantErr %v", tt.json, tt.analysisType, err, tt.wantErr)
		}
	}
}

func TestValidateInsightAcceptsPartialObjects(t *testing.T) {
	result, err := ValidateInsight([]byte(`{"summary":{"averageRating":4.0}}`), models.AnalysisSummary)
	if err != nil {
		t.Fatalf("partial summary rejected: %v", err)
	}
	if result.Summary.AverageRating != 4.0 {
		t.Errorf("average rating = %v, want 4.0", result.Summary.AverageRating)
	}
}
