package state

var (
	DBG_log_table   = false // log every routing table decision
	DBG_log_links   = false // log link up/down events
	DBG_log_packets = false // log every data packet
	DBG_log_adverts = false // log every advertisement
	DBG_metrics     = ""    // if set, serve metrics on this address
)
