package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"traffic-harvester/internal/model"
)

// Header is the column order of the CSV export.
var Header = []string{
	"id", "timestamp", "latitude", "longitude", "type", "subtype",
	"street", "city", "country", "reliability", "reportrating",
	"confidence", "speedkmh", "length", "delay",
}

// WriteCSV writes one row per event. Absent values are empty cells.
func WriteCSV(w io.Writer, c model.Collection) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, e := range c {
		row := []string{
			e.ID,
			strconv.FormatInt(e.Timestamp, 10),
			fmtFloat(e.Latitude),
			fmtFloat(e.Longitude),
			e.Type,
			e.Subtype,
			e.Street,
			e.City,
			e.Country,
			fmtInt(e.Reliability),
			fmtInt(e.ReportRating),
			fmtInt(e.Confidence),
			fmtFloat(e.SpeedKMH),
			fmtInt(e.Length),
			fmtInt(e.Delay),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func fmtFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func fmtInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
