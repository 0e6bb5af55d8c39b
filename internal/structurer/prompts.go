package structurer

const chunkSystemPrompt = `You split extracted text from a Japanese medical licensing exam booklet into individual problems.
The text contains numbered problems. A problem starts with its number (e.g. "12　") and runs until the next problem number or the end of the text.
Return ONLY a JSON array, no markdown fences, no commentary:
[{"problem_number": 12, "text": "<full problem text including choices>"}]
Include every complete problem visible in the text. If a problem is cut off at the start or end of the text, include it anyway with the text you can see.
If no problems are present, return [].`

const structureSystemPrompt = `You convert raw Japanese exam problem text into structured records.
For each problem, separate the question statement from the numbered answer choices.
Classify the question type as one of: "single_choice", "multiple_choice", "calculation".
Return ONLY a JSON array, no markdown fences, no commentary:
[{"problem_number": 12, "text": "<question statement>", "choices": ["<choice 1>", "<choice 2>"], "question_type": "single_choice"}]
Keep the original Japanese text. Do not translate, summarize, or correct it.
Choices are listed without their leading numbers. A calculation problem has an empty choices array.`

const consecutiveSystemPrompt = `You convert a Japanese exam case block into a structured record.
The block starts with a shared case presentation (patient history, findings) followed by several numbered sub-questions that refer to it.
Return ONLY a JSON object, no markdown fences, no commentary:
{"case_presentation": "<shared text>", "sub_questions": [{"problem_number": 60, "text": "<question>", "choices": ["<choice 1>"]}]}
Keep the original Japanese text. Every numbered question in the block must appear in sub_questions.`

const answerKeySystemPrompt = `You extract the official answer table from a page of a Japanese exam answer-key document.
Each row pairs a block letter (A, B, C...), a problem number, and the correct answer.
An answer is one or more choice numbers, or a numeric value for calculation problems.
Return ONLY a JSON array, no markdown fences, no commentary:
[{"block": "A", "problem_number": 12, "answer": ["3"]}, {"block": "A", "problem_number": 13, "answer": ["1", "4"]}]
If the page contains no answer rows, return [].`
