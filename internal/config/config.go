// Package config loads the device geometry and simulation parameters that
// drive an internal/geom.Params from a TOML document, with a compiled-in
// default so the CLI and every test can run without an external file. The
// loader pattern — a typed default document a caller can override by
// decoding onto it — follows a MkSysLimit()-style "constructor returns a
// populated defaults struct" idiom, generalized from a hardcoded Go literal
// to something a real config file can partially override.
package config

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/dingcuiyu/conzone-go/internal/geom"
)

/// doc mirrors geom.Params field-for-field but with TOML struct tags; toml.Decode
/// is asked to populate a fresh copy of the compiled-in defaults so a config
/// file only needs to name the fields it wants to override.
type doc struct {
	Channels     int `toml:"channels"`
	LunsPerCh    int `toml:"luns_per_channel"`
	PlanesPerLun int `toml:"planes_per_lun"`
	BlksPerPlane int `toml:"blocks_per_plane"`

	LBASize             int `toml:"lba_size"`
	PageSize            int `toml:"page_size"`
	FlashPageSize       int `toml:"flash_page_size"`
	OneshotPageSize     int `toml:"oneshot_page_size"`
	PslcOneshotPageSize int `toml:"pslc_oneshot_page_size"`

	ChunkSize    int `toml:"chunk_size"`
	ZoneSize     int `toml:"zone_size"`
	ZoneCapacity int `toml:"zone_capacity"`
	DiesPerZone  int `toml:"dies_per_zone"`

	ZoneWBSize   int `toml:"zone_write_buffer_size"`
	GlobalWBSize int `toml:"global_write_buffer_size"`

	L2PCacheSize     int `toml:"l2p_cache_size"`
	L2PEntrySize     int `toml:"l2p_entry_size"`
	L2PCacheHashSlot int `toml:"l2p_cache_hash_slots"`
	L2PPreread       int `toml:"l2p_preread"`

	PslcInitBlks     int `toml:"pslc_init_blocks"`
	MetaPslcInitBlks int `toml:"meta_pslc_init_blocks"`
	DataPslcInitBlks int `toml:"data_pslc_init_blocks"`

	WBMgnt     string `toml:"write_buffer_management"`
	SLCBypass  bool   `toml:"slc_bypass"`
	NormalOnly bool   `toml:"normal_only"`
	ZonedSLC   bool   `toml:"zoned_slc_hybrid_map"`

	L2PHybridMap         bool `toml:"l2p_hybrid_map"`
	L2PHybridMapResident bool `toml:"l2p_hybrid_map_resident"`

	MaxChXferSize        int   `toml:"max_channel_xfer_size"`
	ChannelBandwidthBps  int64 `toml:"channel_bandwidth_bps"`
	PCIeBandwidthBps     int64 `toml:"pcie_bandwidth_bps"`
	FWProgLatencyNs      int64 `toml:"fw_prog_latency_ns"`
	FWReadLatencyNs      int64 `toml:"fw_read_latency_ns"`
	FWXferLatencyPer4KNs int64 `toml:"fw_xfer_latency_per_4k_ns"`
}

func toDoc(p *geom.Params) doc {
	wbmgnt := "static"
	if p.WBMgnt == geom.WBMod {
		wbmgnt = "mod"
	}
	return doc{
		Channels: p.Channels, LunsPerCh: p.LunsPerCh, PlanesPerLun: p.PlanesPerLun, BlksPerPlane: p.BlksPerPlane,
		LBASize: p.LBASize, PageSize: p.PageSize, FlashPageSize: p.FlashPageSize,
		OneshotPageSize: p.OneshotPageSize, PslcOneshotPageSize: p.PslcOneshotPageSize,
		ChunkSize: p.ChunkSize, ZoneSize: p.ZoneSize, ZoneCapacity: p.ZoneCapacity, DiesPerZone: p.DiesPerZone,
		ZoneWBSize: p.ZoneWBSize, GlobalWBSize: p.GlobalWBSize,
		L2PCacheSize: p.L2PCacheSize, L2PEntrySize: p.L2PEntrySize, L2PCacheHashSlot: p.L2PCacheHashSlot, L2PPreread: p.L2PPreread,
		PslcInitBlks: p.PslcInitBlks, MetaPslcInitBlks: p.MetaPslcInitBlks, DataPslcInitBlks: p.DataPslcInitBlks,
		WBMgnt: wbmgnt, SLCBypass: p.SLCBypass, NormalOnly: p.NormalOnly, ZonedSLC: p.ZonedSLC,
		L2PHybridMap: p.L2PHybridMap, L2PHybridMapResident: p.L2PHybridMapResident,
		MaxChXferSize: p.MaxChXferSize, ChannelBandwidthBps: p.ChannelBandwidthBps, PCIeBandwidthBps: p.PCIeBandwidthBps,
		FWProgLatencyNs: p.FWProgLatencyNs, FWReadLatencyNs: p.FWReadLatencyNs, FWXferLatencyPer4KNs: p.FWXferLatencyPer4KNs,
	}
}

func fromDoc(d doc, out *geom.Params) error {
	out.Channels, out.LunsPerCh, out.PlanesPerLun, out.BlksPerPlane = d.Channels, d.LunsPerCh, d.PlanesPerLun, d.BlksPerPlane
	out.LBASize, out.PageSize, out.FlashPageSize = d.LBASize, d.PageSize, d.FlashPageSize
	out.OneshotPageSize, out.PslcOneshotPageSize = d.OneshotPageSize, d.PslcOneshotPageSize
	out.ChunkSize, out.ZoneSize, out.ZoneCapacity, out.DiesPerZone = d.ChunkSize, d.ZoneSize, d.ZoneCapacity, d.DiesPerZone
	out.ZoneWBSize, out.GlobalWBSize = d.ZoneWBSize, d.GlobalWBSize
	out.L2PCacheSize, out.L2PEntrySize, out.L2PCacheHashSlot, out.L2PPreread = d.L2PCacheSize, d.L2PEntrySize, d.L2PCacheHashSlot, d.L2PPreread
	out.PslcInitBlks, out.MetaPslcInitBlks, out.DataPslcInitBlks = d.PslcInitBlks, d.MetaPslcInitBlks, d.DataPslcInitBlks
	switch d.WBMgnt {
	case "static":
		out.WBMgnt = geom.WBStatic
	case "mod":
		out.WBMgnt = geom.WBMod
	default:
		return fmt.Errorf("config: unknown write_buffer_management %q", d.WBMgnt)
	}
	out.SLCBypass, out.NormalOnly, out.ZonedSLC = d.SLCBypass, d.NormalOnly, d.ZonedSLC
	out.L2PHybridMap, out.L2PHybridMapResident = d.L2PHybridMap, d.L2PHybridMapResident
	out.MaxChXferSize = d.MaxChXferSize
	out.ChannelBandwidthBps, out.PCIeBandwidthBps = d.ChannelBandwidthBps, d.PCIeBandwidthBps
	out.FWProgLatencyNs, out.FWReadLatencyNs, out.FWXferLatencyPer4KNs = d.FWProgLatencyNs, d.FWReadLatencyNs, d.FWXferLatencyPer4KNs
	return nil
}

/// Load decodes a TOML document on top of geom.Default(), so an input file
/// only needs to set the fields it wants to change. The NAND latency tables
/// are not exposed to TOML override — they stay compiled-in per cell mode,
/// kept as Go constants rather than config, the way cycle-cost tables
/// usually are.
func Load(src []byte) (*geom.Params, error) {
	base := geom.Default()
	d := toDoc(base)
	if _, err := toml.Decode(string(src), &d); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	out := geom.Default()
	if err := fromDoc(d, out); err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

/// LoadDefault returns geom.Default() unmodified — used by the CLI and tests
/// when no -config flag is given.
func LoadDefault() *geom.Params {
	return geom.Default()
}

/// MarshalDefault renders geom.Default() back to TOML, letting the CLI emit
/// a starter config file with -dump-config.
func MarshalDefault() ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(toDoc(geom.Default())); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
