// Package files manages rendered output files.
//
// Manager resolves output paths against a base directory and writes files
// atomically: content is encoded into a temporary file in the destination
// directory, synced, closed and renamed over the destination. A failed
// write leaves the destination untouched and removes the temporary file.
//
// Example usage:
//
//	manager := files.NewManager("/var/lib/calheat", logger)
//	n, err := manager.WriteAtomic("calendar_heatmap.png", func(w io.Writer) error {
//	    return png.Encode(w, img)
//	})
package files
