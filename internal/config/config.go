package config

import (
	"fmt"
	"time"

	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/galog"
)

// Edge holds the configuration surface for the edge ingestion process:
// the HTTP pixel endpoint and the handoff writer feeding the forge.
type Edge struct {
	Global struct {
		Bind                       string
		Log_Level                  string
		Log_File                   string
		Queue_Capacity             int
		Failover_Directory         string
		Endpoint_Name              string
		Max_Concurrent_Connections int
		Shutdown_Timeout_Seconds   int
		Datacenter_Refresh_Interval string
		AWS_Ranges_URL             string
		GCP_Ranges_URL             string
		Health_Check_URL           string
		Handoff_Shared_Secret      string
	}
}

// Forge holds the configuration surface for the enrichment/bulk-write
// process.
type Forge struct {
	Global struct {
		Log_Level                string
		Log_File                 string
		Listen_Endpoint_Name     string
		Max_Concurrent_Listeners int
		Failover_Directory       string
		Catchup_Interval_Seconds int
		Worker_Count             int
		Database_Connection_String string
		Batch_Size               int
		Shutdown_Timeout_Seconds int
		GeoIP_City_DB_Path       string
		GeoIP_ASN_DB_Path        string
		Bot_Catalog_Path         string
		Online_Geo_URL           string
		Online_Geo_Max_Per_Minute int
		Online_Geo_Max_Stale_Days int
		WHOIS_Timeout_Seconds    int
		RDNS_Timeout_Seconds     int
		RDNS_Server              string
		Handoff_Shared_Secret    string
		BoltDB_Path              string
	}
}

func LoadEdge(primary, overlayDir string) (*Edge, error) {
	c := &Edge{}
	c.Global.Bind = `:80`
	c.Global.Queue_Capacity = 10000
	c.Global.Failover_Directory = `./failover`
	c.Global.Endpoint_Name = `/tmp/smartpixl.sock`
	c.Global.Max_Concurrent_Connections = 1
	c.Global.Shutdown_Timeout_Seconds = 5
	c.Global.Datacenter_Refresh_Interval = `168h`
	if err := LoadFile(c, primary); err != nil {
		return nil, err
	}
	if err := LoadOverlays(c, overlayDir); err != nil {
		return nil, err
	}
	return c, c.validate()
}

func (c *Edge) validate() error {
	if c.Global.Queue_Capacity <= 0 {
		return fmt.Errorf("Queue-Capacity must be > 0")
	}
	if c.Global.Endpoint_Name == `` {
		return fmt.Errorf("Endpoint-Name is required")
	}
	return nil
}

func (c *Edge) ShutdownTimeout() time.Duration {
	return time.Duration(c.Global.Shutdown_Timeout_Seconds) * time.Second
}

func (c *Edge) DatacenterRefreshInterval() time.Duration {
	d, err := time.ParseDuration(c.Global.Datacenter_Refresh_Interval)
	if err != nil || d <= 0 {
		return 7 * 24 * time.Hour
	}
	return d
}

func LoadForge(primary, overlayDir string) (*Forge, error) {
	c := &Forge{}
	c.Global.Listen_Endpoint_Name = `/tmp/smartpixl.sock`
	c.Global.Max_Concurrent_Listeners = 4
	c.Global.Failover_Directory = `./failover`
	c.Global.Catchup_Interval_Seconds = 60
	c.Global.Worker_Count = 4
	c.Global.Batch_Size = 100
	c.Global.Shutdown_Timeout_Seconds = 5
	c.Global.Online_Geo_Max_Per_Minute = 30
	c.Global.Online_Geo_Max_Stale_Days = 90
	c.Global.WHOIS_Timeout_Seconds = 5
	c.Global.RDNS_Timeout_Seconds = 2
	c.Global.RDNS_Server = `8.8.8.8:53`
	c.Global.BoltDB_Path = `./forge_state.bolt`
	if err := LoadFile(c, primary); err != nil {
		return nil, err
	}
	if err := LoadOverlays(c, overlayDir); err != nil {
		return nil, err
	}
	return c, c.validate()
}

func (c *Forge) validate() error {
	if c.Global.Worker_Count <= 0 {
		return fmt.Errorf("Worker-Count must be > 0")
	}
	if c.Global.Batch_Size <= 0 {
		return fmt.Errorf("Batch-Size must be > 0")
	}
	return nil
}

func (c *Forge) ShutdownTimeout() time.Duration {
	return time.Duration(c.Global.Shutdown_Timeout_Seconds) * time.Second
}

func (c *Forge) CatchupInterval() time.Duration {
	return time.Duration(c.Global.Catchup_Interval_Seconds) * time.Second
}

func (c *Forge) WHOISTimeout() time.Duration {
	return time.Duration(c.Global.WHOIS_Timeout_Seconds) * time.Second
}

func (c *Forge) RDNSTimeout() time.Duration {
	return time.Duration(c.Global.RDNS_Timeout_Seconds) * time.Second
}

func (c *Forge) OnlineGeoMaxStale() time.Duration {
	return time.Duration(c.Global.Online_Geo_Max_Stale_Days) * 24 * time.Hour
}

// MustLevel resolves a configured log-level string to a galog.Level,
// falling back to INFO on an invalid value after logging a warning.
func MustLevel(lg *galog.Logger, s string) galog.Level {
	lvl, err := galog.LevelFromString(s)
	if err != nil {
		lg.Warn("invalid log level in config, defaulting to INFO", galog.KV("value", s))
		return galog.INFO
	}
	return lvl
}
