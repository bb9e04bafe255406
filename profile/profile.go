// Package profile computes dataset quality reports: per-column statistics,
// table-level quality scores, PII detection, and cleanup recommendations.
package profile

import (
	"math"
	"sort"

	"github.com/tidytable/tidytable/table"
)

// ColumnProfile summarizes one column.
type ColumnProfile struct {
	Name           string     `json:"name"`
	DataType       table.Type `json:"dataType"`
	UniqueCount    int        `json:"uniqueCount"`
	NullCount      int        `json:"nullCount"`
	NullPercentage float64    `json:"nullPercentage"`

	// Numeric columns only.
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
	Mean   *float64 `json:"mean,omitempty"`
	Median *float64 `json:"median,omitempty"`
	Std    *float64 `json:"std,omitempty"`

	PIIDetected bool `json:"piiDetected,omitempty"`
}

// Report is the full profile of a table.
type Report struct {
	TotalRows     int             `json:"totalRows"`
	TotalColumns  int             `json:"totalColumns"`
	MissingCells  int             `json:"missingCells"`
	DuplicateRows int             `json:"duplicateRows"`

	OverallScore      float64 `json:"overallScore"`
	CompletenessScore float64 `json:"completenessScore"`
	UniquenessScore   float64 `json:"uniquenessScore"`
	ConsistencyScore  float64 `json:"consistencyScore"`
	ValidityScore     float64 `json:"validityScore"`

	Columns         []ColumnProfile          `json:"columns"`
	PIIDetected     bool                     `json:"piiDetected"`
	PIISummary      map[string][]PIIFinding  `json:"piiSummary"`
	Recommendations []string                 `json:"recommendations"`
}

// Fixed components of the quality score; completeness and uniqueness are
// computed, consistency and validity are assessed at a flat baseline.
const (
	consistencyBaseline = 85.0
	validityBaseline    = 90.0
)

// Profile analyzes a table.
func Profile(t *table.Table) *Report {
	scanner := NewPIIScanner()

	rep := &Report{
		TotalRows:    t.NumRows(),
		TotalColumns: t.NumCols(),
		PIISummary:   map[string][]PIIFinding{},
	}

	for c, col := range t.Columns {
		cp := ColumnProfile{Name: col.Name, DataType: col.Type}
		unique := map[string]bool{}
		var nums []float64
		for _, row := range t.Rows {
			v := row[c]
			if table.IsMissing(v) {
				cp.NullCount++
				rep.MissingCells++
				continue
			}
			unique[table.AsString(v)] = true
			if f, ok := table.AsFloat(v); ok {
				nums = append(nums, f)
			}
		}
		cp.UniqueCount = len(unique)
		if t.NumRows() > 0 {
			cp.NullPercentage = round2(float64(cp.NullCount) / float64(t.NumRows()) * 100)
		}
		if table.IsNumericType(col.Type) && len(nums) > 0 {
			fillNumericStats(&cp, nums)
		}
		if col.Type == table.TypeString {
			if findings := scanner.ScanColumn(t, c); len(findings) > 0 {
				cp.PIIDetected = true
				rep.PIIDetected = true
				rep.PIISummary[col.Name] = findings
			}
		}
		rep.Columns = append(rep.Columns, cp)
	}

	rep.DuplicateRows = countDuplicates(t)
	rep.scoreAndRecommend()
	return rep
}

func (r *Report) scoreAndRecommend() {
	totalCells := r.TotalRows * r.TotalColumns
	completeness := 100.0
	if totalCells > 0 {
		completeness = math.Max(0, 100-float64(r.MissingCells)/float64(totalCells)*100)
	}
	uniqueness := 100.0
	if r.TotalRows > 0 {
		uniqueness = math.Max(0, 100-float64(r.DuplicateRows)/float64(r.TotalRows)*100)
	}

	r.CompletenessScore = round2(completeness)
	r.UniquenessScore = round2(uniqueness)
	r.ConsistencyScore = consistencyBaseline
	r.ValidityScore = validityBaseline
	r.OverallScore = round2((r.CompletenessScore + r.UniquenessScore + r.ConsistencyScore + r.ValidityScore) / 4)

	if r.CompletenessScore < 80 {
		r.Recommendations = append(r.Recommendations, "Consider handling missing values")
	}
	if r.UniquenessScore < 90 {
		r.Recommendations = append(r.Recommendations, "Remove duplicate rows to improve data quality")
	}
	if r.PIIDetected {
		r.Recommendations = append(r.Recommendations, "PII data detected - consider anonymization")
	}
}

func fillNumericStats(cp *ColumnProfile, nums []float64) {
	sorted := append([]float64(nil), nums...)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range nums {
		sum += v
	}
	mean := sum / float64(len(nums))

	variance := 0.0
	for _, v := range nums {
		variance += (v - mean) * (v - mean)
	}
	var std float64
	if len(nums) > 1 {
		std = math.Sqrt(variance / float64(len(nums)-1))
	}

	mid := len(sorted) / 2
	median := sorted[mid]
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}

	cp.Min = ptr(sorted[0])
	cp.Max = ptr(sorted[len(sorted)-1])
	cp.Mean = ptr(round2(mean))
	cp.Median = ptr(median)
	cp.Std = ptr(round2(std))
}

func countDuplicates(t *table.Table) int {
	seen := map[string]bool{}
	dups := 0
	for _, row := range t.Rows {
		key := ""
		for _, v := range row {
			key += table.AsString(v) + "\x00"
		}
		if seen[key] {
			dups++
		}
		seen[key] = true
	}
	return dups
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func ptr(f float64) *float64 { return &f }
