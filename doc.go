// Package soundmod edits Wwise game audio assets and transcodes audio
// through the external tools the Wwise ecosystem relies on.
//
// SoundBanks (.bnk) are handled by package bnk and File Packages (.pck) by
// package pck. Both can be taken apart into loose stream files named
// "<id>.wem" and rebuilt from them. This package ties them together with
// three external tools:
//   - ffmpeg, for conversions between common formats
//   - vgmstream-cli, to decode wem
//   - WwiseConsole, to encode wem
//
// # Basic Usage
//
// Create a workspace; tools not given a path are detected:
//
//	ws, err := soundmod.NewWorkspace(ctx, soundmod.DefaultOptions())
//	if err != nil {
//		return err
//	}
//	defer ws.Close()
//
// Replace the streams of a bank with the .wem files of a directory:
//
//	bank, err := ws.LoadBank("Music.bnk", bnk.DefaultKeep)
//	err = ws.SaveBank("Music.modded.bnk", bank, "streams/")
//
// Rebuild a package body from loose files:
//
//	info, err := ws.LoadPackage("Sounds.pck")
//	err = ws.SavePackage(info.Header, "Sounds.modded.pck", "streams/")
//
// Convert between formats; wem conversions pass through wav:
//
//	err = ws.AutoTranscode(ctx, "intro.mp3", "streams/123456.wem")
//
// # Errors
//
// Failures wrap sentinel errors such as ErrNotFound, ErrMissingSource or
// ErrCommandFailed. Describe renders any of them one cause per line.
//
// # Requirements
//
// The tools are located through, in order, FFMPEG_PATH (ffmpeg only), the
// directory of the running executable, the working directory and PATH.
// vgmstream is also looked up in a "vgmstream-win64" subdirectory.
// Encoding wem requires a Wwise installation providing WwiseConsole.
package soundmod
