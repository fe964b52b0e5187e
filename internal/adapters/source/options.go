package source

import "github.com/okian/barrace/pkg/logger"

// CSVOption applies a configuration option to the CSVLoader.
type CSVOption func(*CSVLoader)

// WithChampionsFile sets the champions file path.
func WithChampionsFile(path string) CSVOption {
	return func(l *CSVLoader) { l.championsPath = path }
}

// WithFederationsFile sets the federations file path.
func WithFederationsFile(path string) CSVOption {
	return func(l *CSVLoader) { l.federationsPath = path }
}

// WithCSVLogger sets a custom logger for the CSV loader.
func WithCSVLogger(l logger.Logger) CSVOption {
	return func(c *CSVLoader) {
		if l != nil {
			c.logger = l
		}
	}
}

// SQLiteOption applies a configuration option to the SQLiteLoader.
type SQLiteOption func(*SQLiteLoader)

// WithSQLiteLogger sets a custom logger for the SQLite loader.
func WithSQLiteLogger(l logger.Logger) SQLiteOption {
	return func(s *SQLiteLoader) {
		if l != nil {
			s.logger = l
		}
	}
}
