package gps

// MediaTek receiver configuration, written once at startup.
const (
	// PMTKSetNMEAOutputRMC restricts output to RMC sentences.
	PMTKSetNMEAOutputRMC = "$PMTK314,0,1,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0*29\r\n"
	// PMTKSetUpdate2Hz sets a 500 ms fix interval.
	PMTKSetUpdate2Hz = "$PMTK300,500,0,0,0,0*28\r\n"
)

// StartupCommands returns the PMTK commands in the order they must be sent.
func StartupCommands() []string {
	return []string{PMTKSetNMEAOutputRMC, PMTKSetUpdate2Hz}
}
