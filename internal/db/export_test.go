package db

var Buckets = buckets
