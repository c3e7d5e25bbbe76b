package s0_data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/salescast/internal/contracts"
)

// Input file names inside DATA_DIR
const (
	SalesFile    = "sales_train.csv"
	ItemsFile    = "items.csv"
	RequestsFile = "test.csv"
)

// AggregatesFile monthly aggregate checkpoint inside OUTPUT_DIR
const AggregatesFile = "train_monthly_sales.csv"

// AggregateHeader column order of the aggregate checkpoint
var AggregateHeader = []string{"date_block_num", "shop_id", "item_id", "avg_sales_price", "total_sales", "total_record_count"}

// Accepted date layouts of the raw log
var dateLayouts = []string{"02.01.2006", "2006-01-02"}

// csvTable 헤더 기반 컬럼 접근
type csvTable struct {
	path    string
	columns map[string]int
	reader  *csv.Reader
	line    int
}

func openCSV(r io.Reader, path string, required ...string) (*csvTable, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%s: %w", path, &contracts.MissingColumnError{Stage: contracts.StageAggregate, Column: name})
		}
	}

	return &csvTable{path: path, columns: cols, reader: cr, line: 1}, nil
}

// next returns the next record or io.EOF
func (t *csvTable) next() ([]string, error) {
	rec, err := t.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read %s: %w", t.path, err)
	}
	t.line++
	return rec, nil
}

func (t *csvTable) intField(rec []string, col string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(rec[t.columns[col]]))
	if err != nil {
		return 0, fmt.Errorf("%s line %d column %s: %w", t.path, t.line, col, err)
	}
	return v, nil
}

func (t *csvTable) floatField(rec []string, col string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(rec[t.columns[col]]), 64)
	if err != nil {
		return 0, fmt.Errorf("%s line %d column %s: %w", t.path, t.line, col, err)
	}
	return v, nil
}

func (t *csvTable) has(col string) bool {
	_, ok := t.columns[col]
	return ok
}

// LoadSales reads the raw transaction log
// columns: date,date_block_num,shop_id,item_id,item_price,item_cnt_day
func LoadSales(path string) ([]contracts.RawSale, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sales log: %w", err)
	}
	defer f.Close()

	return ReadSales(f, path)
}

// ReadSales parses a raw transaction log from r
func ReadSales(r io.Reader, name string) ([]contracts.RawSale, error) {
	t, err := openCSV(r, name, "date_block_num", "shop_id", "item_id", "item_price", "item_cnt_day")
	if err != nil {
		return nil, err
	}

	var out []contracts.RawSale
	for {
		rec, err := t.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		var s contracts.RawSale
		if s.MonthIndex, err = t.intField(rec, "date_block_num"); err != nil {
			return nil, err
		}
		if s.ShopID, err = t.intField(rec, "shop_id"); err != nil {
			return nil, err
		}
		if s.ItemID, err = t.intField(rec, "item_id"); err != nil {
			return nil, err
		}
		if s.UnitPrice, err = t.floatField(rec, "item_price"); err != nil {
			return nil, err
		}
		if s.Quantity, err = t.floatField(rec, "item_cnt_day"); err != nil {
			return nil, err
		}
		if t.has("date") {
			s.Date = parseDate(rec[t.columns["date"]])
		}
		out = append(out, s)
	}

	return out, nil
}

// LoadItems reads the item → category catalog
// columns: item_name?,item_id,item_category_id
func LoadItems(path string) ([]contracts.Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open items: %w", err)
	}
	defer f.Close()

	return ReadItems(f, path)
}

// ReadItems parses an item catalog from r
func ReadItems(r io.Reader, name string) ([]contracts.Item, error) {
	t, err := openCSV(r, name, "item_id", "item_category_id")
	if err != nil {
		return nil, err
	}

	var out []contracts.Item
	for {
		rec, err := t.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		var it contracts.Item
		if it.ItemID, err = t.intField(rec, "item_id"); err != nil {
			return nil, err
		}
		if it.CategoryID, err = t.intField(rec, "item_category_id"); err != nil {
			return nil, err
		}
		out = append(out, it)
	}

	return out, nil
}

// LoadRequests reads the inference request file
// columns: ID,shop_id,item_id
func LoadRequests(path string) ([]contracts.InferenceRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open inference requests: %w", err)
	}
	defer f.Close()

	return ReadRequests(f, path)
}

// ReadRequests parses inference requests from r
func ReadRequests(r io.Reader, name string) ([]contracts.InferenceRequest, error) {
	t, err := openCSV(r, name, "ID", "shop_id", "item_id")
	if err != nil {
		return nil, err
	}

	var out []contracts.InferenceRequest
	for {
		rec, err := t.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		var req contracts.InferenceRequest
		if req.ID, err = t.intField(rec, "ID"); err != nil {
			return nil, err
		}
		if req.ShopID, err = t.intField(rec, "shop_id"); err != nil {
			return nil, err
		}
		if req.ItemID, err = t.intField(rec, "item_id"); err != nil {
			return nil, err
		}
		out = append(out, req)
	}

	return out, nil
}

// ReadAggregates parses a monthly aggregate checkpoint from r
func ReadAggregates(r io.Reader, name string) ([]contracts.MonthlyAggregate, error) {
	t, err := openCSV(r, name, AggregateHeader...)
	if err != nil {
		return nil, err
	}

	var out []contracts.MonthlyAggregate
	for {
		rec, err := t.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		var a contracts.MonthlyAggregate
		if a.MonthIndex, err = t.intField(rec, "date_block_num"); err != nil {
			return nil, err
		}
		if a.ShopID, err = t.intField(rec, "shop_id"); err != nil {
			return nil, err
		}
		if a.ItemID, err = t.intField(rec, "item_id"); err != nil {
			return nil, err
		}
		if a.AvgSalesPrice, err = t.floatField(rec, "avg_sales_price"); err != nil {
			return nil, err
		}
		if a.TotalSales, err = t.floatField(rec, "total_sales"); err != nil {
			return nil, err
		}
		if a.TotalRecordCount, err = t.intField(rec, "total_record_count"); err != nil {
			return nil, err
		}
		out = append(out, a)
	}

	return out, nil
}

// WriteAggregates writes rows in the aggregate checkpoint format
func WriteAggregates(w io.Writer, rows []contracts.MonthlyAggregate) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(AggregateHeader); err != nil {
		return err
	}
	for _, a := range rows {
		rec := []string{
			strconv.Itoa(a.MonthIndex),
			strconv.Itoa(a.ShopID),
			strconv.Itoa(a.ItemID),
			strconv.FormatFloat(a.AvgSalesPrice, 'g', -1, 64),
			strconv.FormatFloat(a.TotalSales, 'g', -1, 64),
			strconv.Itoa(a.TotalRecordCount),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d
		}
	}
	return time.Time{}
}
