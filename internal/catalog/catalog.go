// Package catalog reads the offline bulk sources fed to the reconciler: the
// sectioned TSV catalog produced by the compile step and plain download
// archives.
package catalog

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/DYArchive/distributed-youtube-tracker/internal/model"
)

const (
	sectionChannels = "[CHANNELS]"
	sectionVideos   = "[VIDEOS]"

	maxLineBytes = 1 << 20
)

// ReadTSV parses a catalog with [CHANNELS] and [VIDEOS] sections. Each
// section starts with a header row; only the first word of a header cell
// names the column, so "include (y/n, blank is y)" is the include column.
// Rows with include=n come back with Exclude set. Identifiers are returned
// raw; canonicalization happens in the reconciler.
func ReadTSV(r io.Reader) (model.Batch, error) {
	var (
		batch   model.Batch
		section string
		header  []string
		lineNo  int
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r\n")
		trimmed := strings.TrimSpace(line)

		switch trimmed {
		case "":
			continue
		case sectionChannels, sectionVideos:
			section = trimmed
			if !sc.Scan() {
				return batch, fmt.Errorf("line %d: %s section has no header row", lineNo, section)
			}
			lineNo++
			header = parseHeader(sc.Text())
			continue
		}

		row := parseRow(line, header)
		switch section {
		case sectionChannels:
			batch.Channels = append(batch.Channels, model.ChannelRecord{
				ID:      row["channel_id"],
				Title:   optional(row["title"]),
				Note:    optional(row["note"]),
				Exclude: row["include"] == "n",
			})
		case sectionVideos:
			if row["video_id"] == "" {
				continue
			}
			rec := model.VideoRecord{
				ID:        row["video_id"],
				Exclude:   row["include"] == "n",
				Title:     optional(row["title"]),
				ChannelID: optional(row["channel_id"]),
				Format:    optional(row["format_id"]),
			}
			if s := row["filesize"]; s != "" {
				n, err := strconv.ParseInt(s, 10, 64)
				if err != nil {
					return batch, fmt.Errorf("line %d: filesize %q: %w", lineNo, s, err)
				}
				if n > 0 {
					rec.Filesize = &n
				}
			}
			batch.Videos = append(batch.Videos, rec)
		default:
			return batch, fmt.Errorf("line %d: row outside of a section", lineNo)
		}
	}
	if err := sc.Err(); err != nil {
		return batch, fmt.Errorf("read catalog: %w", err)
	}
	return batch, nil
}

// ReadArchive parses a download archive ("<extractor> <id>" per line) into a
// sparse batch. Entries from other extractors are skipped.
func ReadArchive(r io.Reader) (model.Batch, error) {
	var batch model.Batch
	seen := make(map[string]struct{})

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) != 2 || fields[0] != "youtube" {
			continue
		}
		if _, dup := seen[fields[1]]; dup {
			continue
		}
		seen[fields[1]] = struct{}{}
		batch.Videos = append(batch.Videos, model.VideoRecord{ID: fields[1]})
	}
	if err := sc.Err(); err != nil {
		return batch, fmt.Errorf("read archive: %w", err)
	}
	return batch, nil
}

func parseHeader(line string) []string {
	cells := strings.Split(strings.TrimSpace(line), "\t")
	header := make([]string, len(cells))
	for i, c := range cells {
		if f := strings.Fields(c); len(f) > 0 {
			header[i] = strings.ToLower(f[0])
		}
	}
	return header
}

// parseRow maps cells onto header names. Cells past the header are ignored.
func parseRow(line string, header []string) map[string]string {
	row := make(map[string]string, len(header))
	for i, c := range strings.Split(line, "\t") {
		if i >= len(header) {
			break
		}
		row[header[i]] = strings.TrimSpace(c)
	}
	return row
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
