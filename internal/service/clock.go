package service

import "time"

// Подменяется в тестах.
var timeNow = time.Now
