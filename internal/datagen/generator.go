package datagen

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"

	"github.com/wonny/salescast/internal/contracts"
	"github.com/wonny/salescast/internal/s0_data"
)

// Config 합성 데이터셋 크기/분포
type Config struct {
	Months     int
	Shops      int
	Items      int
	Categories int
	Seed       uint64
	StartDate  time.Time
	RefundRate float64 // share of transaction rows that are returns
	MaxRows    int     // max transaction rows per (month, shop, item)
}

// DefaultConfig returns a small dataset that trains in seconds
func DefaultConfig() Config {
	return Config{
		Months:     34,
		Shops:      4,
		Items:      120,
		Categories: 8,
		Seed:       42,
		StartDate:  time.Date(2013, 1, 1, 0, 0, 0, 0, time.UTC),
		RefundRate: 0.04,
		MaxRows:    8,
	}
}

// Validate checks dataset bounds
func (c Config) Validate() error {
	switch {
	case c.Months < 2:
		return fmt.Errorf("months must be >= 2")
	case c.Shops < 1 || c.Shops-1 > contracts.MaxShopID:
		return fmt.Errorf("shops out of range: %d", c.Shops)
	case c.Items < 1 || c.Items-1 > contracts.MaxItemID:
		return fmt.Errorf("items out of range: %d", c.Items)
	case c.Categories < 1 || c.Categories > c.Items:
		return fmt.Errorf("categories must be in [1, items]")
	case c.RefundRate < 0 || c.RefundRate >= 1:
		return fmt.Errorf("refund rate must be in [0, 1)")
	case c.MaxRows < 1:
		return fmt.Errorf("max rows must be >= 1")
	}
	return nil
}

// ItemRecord items.csv row
type ItemRecord struct {
	Name       string
	ItemID     int
	CategoryID int
}

// Dataset generated inputs
type Dataset struct {
	Sales    []contracts.RawSale
	Items    []ItemRecord
	Requests []contracts.InferenceRequest
}

// Generator 시드 고정 합성 판매 로그 생성기
type Generator struct {
	cfg   Config
	faker *gofakeit.Faker
	log   zerolog.Logger
}

// NewGenerator creates a generator; the same config always yields the same dataset
func NewGenerator(cfg Config, log zerolog.Logger) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("datagen config: %w", err)
	}
	return &Generator{
		cfg:   cfg,
		faker: gofakeit.New(cfg.Seed),
		log:   log.With().Str("component", "datagen").Logger(),
	}, nil
}

// itemProfile 아이템별 수요 특성
type itemProfile struct {
	popularity float64 // probability of selling in a (month, shop)
	price      float64
	launch     int // first month the item sells
	seasonal   bool
}

// Generate builds the raw log, the catalog and one inference request per (shop, item)
func (g *Generator) Generate() *Dataset {
	f := g.faker
	ds := &Dataset{}

	profiles := make([]itemProfile, g.cfg.Items)
	for i := range profiles {
		// 소수 인기 아이템 + 다수 비인기 아이템
		profiles[i] = itemProfile{
			popularity: math.Pow(f.Float64Range(0, 1), 2),
			price:      f.Price(5, 3000),
			launch:     f.IntRange(0, g.cfg.Months/2),
			seasonal:   f.Bool(),
		}
		ds.Items = append(ds.Items, ItemRecord{
			Name:       f.ProductName(),
			ItemID:     i,
			CategoryID: i % g.cfg.Categories,
		})
	}

	shopScale := make([]float64, g.cfg.Shops)
	for s := range shopScale {
		shopScale[s] = f.Float64Range(0.5, 1.5)
	}

	for m := 0; m < g.cfg.Months; m++ {
		monthStart := g.cfg.StartDate.AddDate(0, m, 0)
		days := monthStart.AddDate(0, 1, -1).Day()

		for s := 0; s < g.cfg.Shops; s++ {
			for i, p := range profiles {
				if m < p.launch {
					continue
				}
				demand := p.popularity * shopScale[s]
				if p.seasonal && m%12 == 11 {
					demand *= 2
				}
				if f.Float64Range(0, 1) >= math.Min(demand, 0.95) {
					continue
				}

				rows := f.IntRange(1, 1+int(demand*float64(g.cfg.MaxRows-1)))
				for r := 0; r < rows; r++ {
					qty := 1.0
					if f.Float64Range(0, 1) < 0.1 {
						qty = float64(f.IntRange(2, 4))
					}
					if f.Float64Range(0, 1) < g.cfg.RefundRate {
						qty = -1
					}
					ds.Sales = append(ds.Sales, contracts.RawSale{
						Date:       monthStart.AddDate(0, 0, f.IntRange(0, days-1)),
						MonthIndex: m,
						ShopID:     s,
						ItemID:     i,
						UnitPrice:  math.Round(p.price*f.Float64Range(0.9, 1.1)*100) / 100,
						Quantity:   qty,
					})
				}
			}
		}
	}

	id := 0
	for s := 0; s < g.cfg.Shops; s++ {
		for i := 0; i < g.cfg.Items; i++ {
			ds.Requests = append(ds.Requests, contracts.InferenceRequest{ID: id, ShopID: s, ItemID: i})
			id++
		}
	}

	g.log.Info().
		Int("months", g.cfg.Months).
		Int("shops", g.cfg.Shops).
		Int("items", g.cfg.Items).
		Int("sales_rows", len(ds.Sales)).
		Int("requests", len(ds.Requests)).
		Msg("Generated synthetic dataset")

	return ds
}

// WriteDir writes sales_train.csv, items.csv and test.csv into dir
func (d *Dataset) WriteDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	sales := make([][]string, 0, len(d.Sales)+1)
	sales = append(sales, []string{"date", "date_block_num", "shop_id", "item_id", "item_price", "item_cnt_day"})
	for _, s := range d.Sales {
		sales = append(sales, []string{
			s.Date.Format("02.01.2006"),
			strconv.Itoa(s.MonthIndex),
			strconv.Itoa(s.ShopID),
			strconv.Itoa(s.ItemID),
			strconv.FormatFloat(s.UnitPrice, 'f', 2, 64),
			strconv.FormatFloat(s.Quantity, 'f', 1, 64),
		})
	}

	items := make([][]string, 0, len(d.Items)+1)
	items = append(items, []string{"item_name", "item_id", "item_category_id"})
	for _, it := range d.Items {
		items = append(items, []string{it.Name, strconv.Itoa(it.ItemID), strconv.Itoa(it.CategoryID)})
	}

	reqs := make([][]string, 0, len(d.Requests)+1)
	reqs = append(reqs, []string{"ID", "shop_id", "item_id"})
	for _, r := range d.Requests {
		reqs = append(reqs, []string{strconv.Itoa(r.ID), strconv.Itoa(r.ShopID), strconv.Itoa(r.ItemID)})
	}

	for name, records := range map[string][][]string{
		s0_data.SalesFile:    sales,
		s0_data.ItemsFile:    items,
		s0_data.RequestsFile: reqs,
	} {
		if err := writeCSV(filepath.Join(dir, name), records); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV(path string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
