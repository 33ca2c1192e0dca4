// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/datacarve

/*
Package datacarve extracts embedded resources (images, audio, archives,
shader text) from opaque game data containers and rebuilds containers
from the extracted files, optionally substituting replacement blobs.

Extraction strategies are probed in fixed order:
  - raw text: an 8-byte marker followed by UTF-8 shader source;
  - length-prefixed: repeated (LE32 length, 4 reserved bytes, payload) records;
  - signature scan: resources carved by leading magic bytes and per-format end rules.

Only length-prefixed manifests rebuild byte-identical containers. Bytes after
the last complete record are kept in trailing.bin so the rebuild stays lossless.

# Extracting

Extract a container into assets/extracted/<basename>/ with index.json:

	idx, err := datacarve.Run(ctx, "game/level1.data", datacarve.ExtractOptions{})
	if err != nil {
	    return err
	}
	for _, rec := range idx.Records {
	    fmt.Println(rec.Index, rec.Filename, rec.Kind)
	}

Store large extracted blobs LZSS-compressed (kept only when smaller),
filtered by github.com/woozymasta/pathrules rules:

	idx, err := datacarve.Run(ctx, "game/level1.data", datacarve.ExtractOptions{
	    OutputRoot: "work/extracted",
	    Compress: []pathrules.Rule{
	        {Action: pathrules.ActionInclude, Pattern: "*.bin"},
	    },
	    ManifestFormat: datacarve.ManifestYAML,
	})

Classify a container without writing files:

	idx, err := datacarve.Inspect(ctx, "game/level1.data")
	if err != nil {
	    return err
	}
	_ = idx.Method

# Rebuilding

Rebuild a container, replacing record 3 with an edited file:

	res, err := datacarve.Rebuild(ctx, "out/level1.data", "assets/extracted/level1.data",
	    map[int]string{3: "mods/0003_len_512.png"},
	    datacarve.RebuildOptions{BackupKeep: 1},
	)
	if err != nil {
	    return err
	}
	_ = res.SHA1

Collect replacements from a directory of edited files named like the extracted ones:

	idx, err := datacarve.ReadIndex("assets/extracted/level1.data")
	if err != nil {
	    return err
	}
	repl, err := datacarve.CollectReplacements("mods/level1", idx)
	if err != nil {
	    return err
	}

Rebuild every extracted *.data directory into a game directory:

	results, err := datacarve.RebuildTree(ctx, "assets/extracted", "build/game", datacarve.TreeOptions{})
*/
package datacarve
