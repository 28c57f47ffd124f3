// Package archive unpacks the tar streams Docker hosts send for copy and
// export, detecting gzip or zstd compression from the stream itself.
package archive
