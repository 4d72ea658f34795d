// Command flowkeeper maintains time-partitioned flow record tables.
//
// Usage:
//
//	# Run the scheduler and the ops HTTP server
//	flowkeeper run
//
//	# Run one sweep now, forcing the daily maintenance steps
//	flowkeeper sweep --maint
//
//	# Show the retention cutoff for a day
//	flowkeeper cutoff --date 2025-01-05 --retention 10
package main

func main() {
	Execute()
}
