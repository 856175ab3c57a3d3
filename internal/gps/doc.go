// Package gps reads the launch and landing coordinates from a GNSS receiver.
//
// Two sources are supported:
//   - NMEA RMC and GGA sentences straight from a serial receiver
//   - gpsd TPV and SKY reports, for boards where gpsd already owns the port
//
// Coordinates are kept as decimals from the wire onwards so the map
// arithmetic in gridmap never sees a binary float rounding of the fix.
package gps
