package writer

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rxtech-lab/moth-trading/internal/types"
	"github.com/rxtech-lab/moth-trading/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type DuckDBWriterTestSuite struct {
	suite.Suite
	tempDir string
}

func TestDuckDBWriterSuite(t *testing.T) {
	suite.Run(t, new(DuckDBWriterTestSuite))
}

func (suite *DuckDBWriterTestSuite) SetupTest() {
	suite.tempDir = suite.T().TempDir()
}

func testBar(i int) types.Bar {
	return types.Bar{
		Symbol: "BTCUSDT",
		Time:   time.Date(2024, 6, 15, i, 0, 0, 0, time.UTC),
		Open:   42000.0 + float64(i),
		High:   42100.0 + float64(i),
		Low:    41900.0 + float64(i),
		Close:  42050.0 + float64(i),
		Volume: 12.5,
	}
}

// readBack counts the exported rows and returns the sum of their closes.
func (suite *DuckDBWriterTestSuite) readBack(path, reader string) (int, float64) {
	db, err := sql.Open("duckdb", "")
	suite.Require().NoError(err)
	defer db.Close()

	var (
		count int
		sum   float64
	)

	err = db.QueryRow(fmt.Sprintf(`SELECT COUNT(*), COALESCE(SUM(close), 0) FROM %s('%s')`, reader, path)).Scan(&count, &sum)
	suite.Require().NoError(err)

	return count, sum
}

func (suite *DuckDBWriterTestSuite) TestNewDuckDBWriter() {
	outputPath := filepath.Join(suite.tempDir, "test.parquet")
	writer := NewDuckDBWriter(outputPath)

	duckWriter, ok := writer.(*DuckDBWriter)
	suite.True(ok)
	suite.Equal(outputPath, duckWriter.GetOutputPath())
	suite.Nil(duckWriter.db)
	suite.Nil(duckWriter.tx)
	suite.Nil(duckWriter.stmt)
}

func (suite *DuckDBWriterTestSuite) TestWriteWithoutInitialize() {
	writer := NewDuckDBWriter(filepath.Join(suite.tempDir, "no_init.parquet"))

	err := writer.Write(testBar(0))
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeMarketDataWriteFailed))
}

func (suite *DuckDBWriterTestSuite) TestFinalizeWithoutInitialize() {
	writer := NewDuckDBWriter(filepath.Join(suite.tempDir, "no_init.parquet"))

	_, err := writer.Finalize()
	suite.Error(err)
	suite.Contains(err.Error(), "not initialized")
}

func (suite *DuckDBWriterTestSuite) TestExportFormats() {
	tests := []struct {
		name   string
		file   string
		reader string
	}{
		{name: "parquet", file: "bars.parquet", reader: "read_parquet"},
		{name: "csv", file: "bars.csv", reader: "read_csv_auto"},
		{name: "upper case csv extension", file: "bars.CSV", reader: "read_csv_auto"},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			outputPath := filepath.Join(suite.tempDir, tc.file)
			writer := NewDuckDBWriter(outputPath)
			suite.Require().NoError(writer.Initialize())

			defer writer.Close()

			// written out of order, exported by time
			for _, i := range []int{2, 0, 1} {
				suite.Require().NoError(writer.Write(testBar(i)))
			}

			path, err := writer.Finalize()
			suite.Require().NoError(err)
			suite.Equal(outputPath, path)

			count, sum := suite.readBack(path, tc.reader)
			suite.Equal(3, count)
			suite.InDelta(42050.0*3+3, sum, 1e-6)
		})
	}
}

func (suite *DuckDBWriterTestSuite) TestCSVHeader() {
	outputPath := filepath.Join(suite.tempDir, "header.csv")
	writer := NewDuckDBWriter(outputPath)
	suite.Require().NoError(writer.Initialize())

	defer writer.Close()

	suite.Require().NoError(writer.Write(testBar(0)))

	_, err := writer.Finalize()
	suite.Require().NoError(err)

	content, err := os.ReadFile(outputPath)
	suite.Require().NoError(err)
	suite.Contains(string(content), "time,symbol,open,high,low,close,volume")
}

func (suite *DuckDBWriterTestSuite) TestEmptyExport() {
	outputPath := filepath.Join(suite.tempDir, "empty.parquet")
	writer := NewDuckDBWriter(outputPath)
	suite.Require().NoError(writer.Initialize())

	defer writer.Close()

	_, err := writer.Finalize()
	suite.Require().NoError(err)

	count, _ := suite.readBack(outputPath, "read_parquet")
	suite.Equal(0, count)
}

func (suite *DuckDBWriterTestSuite) TestWriteAfterFinalize() {
	writer := NewDuckDBWriter(filepath.Join(suite.tempDir, "after.parquet"))
	suite.Require().NoError(writer.Initialize())

	defer writer.Close()

	_, err := writer.Finalize()
	suite.Require().NoError(err)

	suite.Error(writer.Write(testBar(0)))

	_, err = writer.Finalize()
	suite.Error(err)
}

func (suite *DuckDBWriterTestSuite) TestFinalizeExportError() {
	outputPath := filepath.Join(suite.tempDir, "missing", "dir", "bars.parquet")
	writer := NewDuckDBWriter(outputPath)
	suite.Require().NoError(writer.Initialize())

	defer writer.Close()

	suite.Require().NoError(writer.Write(testBar(0)))

	_, err := writer.Finalize()
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeMarketDataWriteFailed))
}

func (suite *DuckDBWriterTestSuite) TestClose() {
	tests := []struct {
		name string
		init bool
	}{
		{name: "without initialize", init: false},
		{name: "with active transaction", init: true},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			writer := NewDuckDBWriter(filepath.Join(suite.tempDir, "close.parquet"))
			if tc.init {
				suite.Require().NoError(writer.Initialize())
				suite.Require().NoError(writer.Write(testBar(0)))
			}

			suite.NoError(writer.Close())
			suite.NoError(writer.Close())

			duckWriter := writer.(*DuckDBWriter)
			suite.Nil(duckWriter.db)
			suite.Nil(duckWriter.tx)
			suite.Nil(duckWriter.stmt)
		})
	}
}

func (suite *DuckDBWriterTestSuite) TestExportOptions() {
	suite.Equal("FORMAT CSV, HEADER", exportOptions("a/b.csv"))
	suite.Equal("FORMAT PARQUET", exportOptions("a/b.parquet"))
	suite.Equal("FORMAT PARQUET", exportOptions("a/b"))
	suite.Equal("it''s", escapeLiteral("it's"))
}
