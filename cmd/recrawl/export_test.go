package main

// NewPromptDecider exposes the interactive decider to tests.
var NewPromptDecider = newPromptDecider

// NewConfigSpider exposes the config-driven spider to tests.
var NewConfigSpider = newConfigSpider
