package config

type WorkerKeyStruct struct {
	GradeItemsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	GradeItemsQueue: "grade_items_queue",
}
