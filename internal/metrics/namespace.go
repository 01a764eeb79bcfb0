package metrics

const BopstackNamespace = "bopstack"
