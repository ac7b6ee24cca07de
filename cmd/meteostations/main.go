// Command meteostations is a small demonstration binary: it resolves a
// region, lists the stations a network operates there and prints a day of
// observations for one variable.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"meteostations.app/app"
	"meteostations.app/client"
	"meteostations.app/geo"
)

func main() {
	providerName := flag.String("provider", "agrometeo", "station network: agrometeo, meteocat or aemet")
	place := flag.String("region", "Switzerland", "place name, GeoJSON path/URL or west,south,east,north bounds")
	variable := flag.String("variable", "temperature", "variable: ECV name, provider code or provider name")
	hours := flag.Int("hours", 24, "window length ending now")
	flag.Parse()

	if err := run(*providerName, *place, *variable, *hours); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(providerName, place, variable string, hours int) error {
	application, err := app.New()
	if err != nil {
		return err
	}
	defer func() { _ = application.Close() }()

	var c *client.Client
	switch providerName {
	case "agrometeo":
		c = application.Agrometeo()
	case "meteocat":
		c, err = application.Meteocat()
	case "aemet":
		c, err = application.Aemet()
	default:
		err = fmt.Errorf("unknown provider %q", providerName)
	}
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	region := regionInput(place)
	stations, err := c.GetStationsDF(ctx, region)
	if err != nil {
		return err
	}
	fmt.Printf("%d stations in region\n", stations.Len())
	for _, s := range stations.Stations {
		fmt.Printf("  %-12s %-30s (%.4f, %.4f)\n", s.ID, s.Name, s.Lon, s.Lat)
	}

	end := time.Now().UTC().Truncate(time.Minute)
	start := end.Add(-time.Duration(hours) * time.Hour)
	table, err := c.GetTSDF(ctx, region, variable, start, end)
	if err != nil {
		return err
	}

	fmt.Printf("\n%d readings x %d columns between %s and %s\n",
		table.NumRows(), table.NumColumns(), start.Format(time.RFC3339), end.Format(time.RFC3339))
	for i := 0; i < table.NumRows(); i++ {
		fmt.Printf("%s", table.Index[i].Format("2006-01-02 15:04"))
		for j := 0; j < table.NumColumns(); j++ {
			if v := table.At(i, j); v != nil {
				fmt.Printf("\t%.2f", *v)
			} else {
				fmt.Printf("\t-")
			}
		}
		fmt.Println()
	}
	return nil
}

// regionInput reads "west,south,east,north" as bounds and anything else as
// a place name, path or URL
func regionInput(s string) geo.RegionInput {
	var west, south, east, north float64
	if n, err := fmt.Sscanf(s, "%f,%f,%f,%f", &west, &south, &east, &north); err == nil && n == 4 {
		return geo.Bounds(west, south, east, north)
	}
	return geo.Place(s)
}
