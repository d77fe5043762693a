package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-approval-api/internal/service"
)

func TestWriteReportFormats(t *testing.T) {
	report := &service.SweepReport{
		ScopesChecked: 1,
		Findings:      []service.ScopeFinding{{DepartmentID: "dept-3", AcademicYearID: "year-1", Promotable: true}},
	}

	var jsonOut bytes.Buffer
	require.NoError(t, writeReport(&jsonOut, "json", report))
	var decoded service.SweepReport
	require.NoError(t, json.Unmarshal(jsonOut.Bytes(), &decoded))
	assert.Equal(t, 1, decoded.ScopesChecked)

	var csvOut bytes.Buffer
	require.NoError(t, writeReport(&csvOut, "csv", report))
	assert.Contains(t, csvOut.String(), "dept-3,year-1,,,false,true,false,")

	var pdfOut bytes.Buffer
	require.NoError(t, writeReport(&pdfOut, "pdf", report))
	assert.True(t, bytes.HasPrefix(pdfOut.Bytes(), []byte("%PDF-")))

	assert.Error(t, writeReport(&bytes.Buffer{}, "xml", report))
}
