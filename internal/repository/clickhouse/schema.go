package clickhouse

import "fmt"

// Schema returns the DDL for the bar tables in database. ReplacingMergeTree
// keeps the newest version per (symbol, tf, time); reads use FINAL.
func Schema(database string) []string {
	return []string{
		fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.bars_raw (
			symbol      LowCardinality(String),
			tf          LowCardinality(String),
			time        DateTime64(3, 'UTC'),
			open        Float64,
			high        Float64,
			low         Float64,
			close       Float64,
			volume      Nullable(Float64),
			source      LowCardinality(String),
			ingested_at DateTime64(3, 'UTC')
		) ENGINE = ReplacingMergeTree(ingested_at)
		PARTITION BY toYYYYMM(time)
		ORDER BY (symbol, tf, time)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.bars_clean (
			symbol        LowCardinality(String),
			tf            LowCardinality(String),
			time          DateTime64(3, 'UTC'),
			open          Float64,
			high          Float64,
			low           Float64,
			close         Float64,
			volume        Nullable(Float64),
			source        LowCardinality(String),
			ingested_at   DateTime64(3, 'UTC'),
			quality_score UInt8,
			validated_at  DateTime64(3, 'UTC')
		) ENGINE = ReplacingMergeTree(validated_at)
		PARTITION BY toYYYYMM(time)
		ORDER BY (symbol, tf, time)`, database),
	}
}
