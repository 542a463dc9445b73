// Package recording writes tracked skeletons to playback files.
//
// A playback file holds one line per tracked body per frame. Each line
// lists the 25 joints in enumeration order, five space-separated values per
// joint: camera-space X, Y, Z in metres followed by depth-space X, Y in
// pixels. Files are UTF-8 without a byte order mark.
package recording
