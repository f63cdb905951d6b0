package readiness

// CheckAllServicesForTest exposes checkAllServices to external tests so they
// can exercise one poll cycle without waiting on the checker's ticker.
func CheckAllServicesForTest(c *Checker) {
	c.checkAllServices()
}
