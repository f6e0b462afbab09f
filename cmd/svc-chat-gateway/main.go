package main

import "github.com/RG-Partners/soraai-chat/internal/runtime"

func main() {
	runtime.New().Run()
}
