package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// ColumnMap maps canonical fields to cell positions in a portal's result
// table. -1 marks a column the portal does not render.
type ColumnMap struct {
	ContractNo int `yaml:"contract_no"`
	Title      int `yaml:"title"`
	Date       int `yaml:"date"`
	Bidding    int `yaml:"bidding"`
	Status     int `yaml:"status"`
}

type TablePortal struct {
	Name        string    `yaml:"name"` // municipality
	URL         string    `yaml:"url"`
	RowSelector string    `yaml:"row_selector"`
	PageParam   string    `yaml:"page_param"` // query param for numbered pages
	MaxPages    int       `yaml:"max_pages"`
	Columns     ColumnMap `yaml:"columns"`
}

type FeedPortal struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type TreePortal struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	PageSize int    `yaml:"page_size"`
}

type EbidPortal struct {
	Name          string    `yaml:"name"`
	EntryURL      string    `yaml:"entry_url"`
	MenuFrame     string    `yaml:"menu_frame"`
	SearchFrame   string    `yaml:"search_frame"`
	ResultFrame   string    `yaml:"result_frame"`
	ScreenID      string    `yaml:"screen_id"`
	CategoryCodes []string  `yaml:"category_codes"`
	RowSelector   string    `yaml:"row_selector"`
	PageJumpFunc  string    `yaml:"page_jump_func"`
	PagerSelector string    `yaml:"pager_selector"`
	Headless      bool      `yaml:"headless"`
	Columns       ColumnMap `yaml:"columns"`
}

type Config struct {
	App struct {
		DataDir string `yaml:"data_dir"`
	} `yaml:"app"`

	Store struct {
		File     string `yaml:"file"`
		DocCache string `yaml:"doc_cache"`
	} `yaml:"store"`

	Limiter struct {
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"limiter"`

	Sources struct {
		CityTable struct {
			Enabled bool          `yaml:"enabled"`
			Portals []TablePortal `yaml:"portals"`
		} `yaml:"citytable"`
		Feeds struct {
			Enabled bool         `yaml:"enabled"`
			Portals []FeedPortal `yaml:"portals"`
		} `yaml:"feeds"`
		TreeAPI struct {
			Enabled bool         `yaml:"enabled"`
			Portals []TreePortal `yaml:"portals"`
		} `yaml:"treeapi"`
		Ebid struct {
			Enabled bool         `yaml:"enabled"`
			Portals []EbidPortal `yaml:"portals"`
		} `yaml:"ebid"`
	} `yaml:"sources"`

	Enrich struct {
		Model        string `yaml:"model"`
		BatchSize    int    `yaml:"batch_size"`
		DelaySeconds int    `yaml:"delay_seconds"`
		MinTextChars int    `yaml:"min_text_chars"`
	} `yaml:"enrich"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}
