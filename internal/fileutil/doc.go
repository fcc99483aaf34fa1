// Package fileutil finds program files on disk.
//
// Commands that accept several programs (validate) take any mix of files
// and directories. Files named explicitly are always kept, whatever their
// extension, since a raw image may be called anything. Directories are
// scanned for the known program extensions:
//
//	.asm .s           assembly source
//	.md .markdown     listings with asm code blocks
//	.yaml .yml        program manifests
//	.bin .img         raw images
//
// Hidden directories (including .thingamajig) are never entered, and
// documentation files such as README.md are skipped. Results are absolute,
// de-duplicated and sorted so output is stable.
package fileutil
